package correlator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestCorrelator() *Correlator {
	return New(zerolog.Nop())
}

func TestCreateTicketKeyRanges(t *testing.T) {
	c := newTestCorrelator()

	tr, err := c.CreateTicket(KindTR)
	if err != nil {
		t.Fatalf("CreateTicket(tr): %v", err)
	}
	if tr.Key < 1000 || tr.Key > 4999 {
		t.Errorf("tr key %d outside [1000, 4999]", tr.Key)
	}

	ord, err := c.CreateTicket(KindOrder)
	if err != nil {
		t.Fatalf("CreateTicket(order): %v", err)
	}
	if ord.Key < 5000 || ord.Key > 9999 {
		t.Errorf("order key %d outside [5000, 9999]", ord.Key)
	}

	if _, err := c.CreateTicket(Kind("bogus")); err == nil {
		t.Error("unknown kind must fail")
	}
}

func TestCreateTicketUniqueKeysWhilePending(t *testing.T) {
	c := newTestCorrelator()
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		tk, err := c.CreateTicket(KindTR)
		if err != nil {
			t.Fatalf("CreateTicket #%d: %v", i, err)
		}
		if seen[tk.Key] {
			t.Fatalf("key %d issued twice while pending", tk.Key)
		}
		seen[tk.Key] = true
	}
	if c.Pending() != 500 {
		t.Errorf("Pending() = %d, want 500", c.Pending())
	}
}

func TestCreateTicketKeyReuseAfterResolve(t *testing.T) {
	c := newTestCorrelator()

	// Exhaust the order range, resolve one key, and verify the next ticket
	// reuses it.
	size := 9999 - 5000 + 1
	tickets := make([]*Ticket, 0, size)
	for i := 0; i < size; i++ {
		tk, err := c.CreateTicket(KindOrder)
		if err != nil {
			t.Fatalf("CreateTicket #%d: %v", i, err)
		}
		tickets = append(tickets, tk)
	}
	if _, err := c.CreateTicket(KindOrder); !errors.Is(err, ErrKeySpaceExhausted) {
		t.Fatalf("full range: err = %v, want ErrKeySpaceExhausted", err)
	}

	freed := tickets[7]
	c.Resolve(freed.Key, "done")

	tk, err := c.CreateTicket(KindOrder)
	if err != nil {
		t.Fatalf("CreateTicket after free: %v", err)
	}
	if tk.Key != freed.Key {
		t.Errorf("reissued key = %d, want the freed key %d", tk.Key, freed.Key)
	}
}

func TestSubmitResolvesWithPayload(t *testing.T) {
	c := newTestCorrelator()
	tk, err := c.CreateTicket(KindTR)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		if !c.Resolve(tk.Key, "payload") {
			t.Error("Resolve found no pending ticket")
		}
	}()

	got, err := c.Submit(context.Background(), tk, time.Second, func(key int) error {
		if key != tk.Key {
			t.Errorf("send received key %d, want %d", key, tk.Key)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got != "payload" {
		t.Errorf("payload = %v, want %q", got, "payload")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after resolve, want 0", c.Pending())
	}
}

func TestSubmitTimesOutExactlyOnce(t *testing.T) {
	c := newTestCorrelator()
	tk, err := c.CreateTicket(KindTR)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Submit(context.Background(), tk, 20*time.Millisecond, func(int) error { return nil })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Submit err = %v, want ErrTimeout", err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after timeout, want 0", c.Pending())
	}

	// A late response after the timeout is an orphan, never a second
	// delivery.
	if c.Resolve(tk.Key, "late") {
		t.Error("late Resolve must report orphan")
	}
}

func TestSubmitSendFailureReleasesKey(t *testing.T) {
	c := newTestCorrelator()
	tk, err := c.CreateTicket(KindTR)
	if err != nil {
		t.Fatal(err)
	}

	sendErr := errors.New("dispatch failed")
	_, err = c.Submit(context.Background(), tk, time.Second, func(int) error { return sendErr })
	if !errors.Is(err, sendErr) {
		t.Fatalf("Submit err = %v, want the send error", err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after send failure, want 0", c.Pending())
	}
}

func TestSubmitContextCancelled(t *testing.T) {
	c := newTestCorrelator()
	tk, err := c.CreateTicket(KindOrder)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = c.Submit(ctx, tk, time.Minute, func(int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Submit err = %v, want context.Canceled", err)
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after cancel, want 0", c.Pending())
	}
}

func TestResolveOrphan(t *testing.T) {
	c := newTestCorrelator()
	if c.Resolve(1234, "nobody waiting") {
		t.Error("Resolve with no pending ticket must return false")
	}
}

func TestConcurrentSubmitResolve(t *testing.T) {
	c := newTestCorrelator()
	const n = 100

	var wg sync.WaitGroup
	keys := make(chan int, n)

	for i := 0; i < n; i++ {
		tk, err := c.CreateTicket(KindTR)
		if err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func(tk *Ticket) {
			defer wg.Done()
			got, err := c.Submit(context.Background(), tk, 2*time.Second, func(key int) error {
				keys <- key
				return nil
			})
			if err != nil {
				t.Errorf("Submit key %d: %v", tk.Key, err)
				return
			}
			if got != tk.Key {
				t.Errorf("payload = %v, want the key %d", got, tk.Key)
			}
		}(tk)
	}

	// Resolve each request with its own key as the payload, simulating the
	// terminal echoing keys back.
	for i := 0; i < n; i++ {
		key := <-keys
		go c.Resolve(key, key)
	}
	wg.Wait()

	if c.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", c.Pending())
	}
}
