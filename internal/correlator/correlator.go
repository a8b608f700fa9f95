// Package correlator turns the terminal's callback-driven responses into
// blocking, timeout-bounded calls. Each outbound request reserves an integer
// correlation key; the terminal echoes the key back in its asynchronous
// response, and the correlator routes the payload to the goroutine waiting
// on it.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"marubot/internal/metrics"
)

// Kind partitions the key space so data requests and orders can never
// collide.
type Kind string

const (
	KindTR    Kind = "tr"
	KindOrder Kind = "order"
)

// Key ranges per kind. Counters wrap within their range; a key is reused
// only after its previous ticket has been resolved or expired.
var keyRanges = map[Kind]struct{ lo, hi int }{
	KindTR:    {1000, 4999},
	KindOrder: {5000, 9999},
}

var (
	// ErrKeySpaceExhausted is returned when every key in a kind's range has
	// a pending ticket. With thousands of keys per range this indicates a
	// stuck terminal, not normal load.
	ErrKeySpaceExhausted = errors.New("correlator: no free correlation key")

	// ErrTimeout is returned by Submit when no response arrived within the
	// ticket's deadline.
	ErrTimeout = errors.New("correlator: request timed out")
)

// TimeoutResult is the synthetic payload delivered to a ticket when it
// expires, replacing the response that never came.
type TimeoutResult struct {
	Key  int
	Kind Kind
}

// Ticket is a single pending request. Tickets are created by the
// correlator, used for exactly one Submit, and never reused.
type Ticket struct {
	ID        string
	Kind      Kind
	Key       int
	CreatedAt time.Time

	done  chan any // buffered; receives exactly one payload
	timer *time.Timer
}

// Correlator owns the pending-ticket table. All methods are safe for
// concurrent use.
type Correlator struct {
	logger zerolog.Logger

	mu      sync.Mutex
	pending map[int]*Ticket
	next    map[Kind]int
}

// New creates an empty Correlator.
func New(logger zerolog.Logger) *Correlator {
	return &Correlator{
		logger:  logger.With().Str("component", "correlator").Logger(),
		pending: make(map[int]*Ticket),
		next:    map[Kind]int{KindTR: 0, KindOrder: 0},
	}
}

// CreateTicket reserves a correlation key of the given kind and registers
// the ticket as pending. The key stays reserved until the ticket resolves
// or expires.
func (c *Correlator) CreateTicket(kind Kind) (*Ticket, error) {
	r, ok := keyRanges[kind]
	if !ok {
		return nil, fmt.Errorf("correlator: unknown kind %q", kind)
	}
	size := r.hi - r.lo + 1

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < size; i++ {
		key := r.lo + c.next[kind]%size
		c.next[kind]++
		if _, inUse := c.pending[key]; inUse {
			continue
		}
		t := &Ticket{
			ID:        uuid.NewString(),
			Kind:      kind,
			Key:       key,
			CreatedAt: time.Now(),
			done:      make(chan any, 1),
		}
		c.pending[key] = t
		return t, nil
	}
	return nil, ErrKeySpaceExhausted
}

// Submit dispatches the request via send and blocks until the matching
// response arrives, the timeout elapses, or the context is cancelled. The
// send function receives the ticket's correlation key and must embed it in
// the outbound request.
//
// On timeout, Submit returns ErrTimeout; the request may still have reached
// the terminal, so callers treat a timed-out order as unconfirmed rather
// than failed.
func (c *Correlator) Submit(ctx context.Context, t *Ticket, timeout time.Duration, send func(key int) error) (any, error) {
	if err := send(t.Key); err != nil {
		c.remove(t.Key)
		return nil, err
	}

	// Arm the expiry only if the ticket is still pending; the response may
	// already have arrived while send was running.
	c.mu.Lock()
	if _, ok := c.pending[t.Key]; ok {
		t.timer = time.AfterFunc(timeout, func() { c.expire(t) })
	}
	c.mu.Unlock()

	select {
	case payload := <-t.done:
		if _, timedOut := payload.(TimeoutResult); timedOut {
			return nil, ErrTimeout
		}
		return payload, nil
	case <-ctx.Done():
		c.remove(t.Key)
		return nil, ctx.Err()
	}
}

// Resolve delivers a response payload to the ticket pending on key. It
// returns false when no ticket is waiting, which marks the event as an
// orphan: a late, duplicate, or unsolicited response.
func (c *Correlator) Resolve(key int, payload any) bool {
	c.mu.Lock()
	t, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
		if t.timer != nil {
			t.timer.Stop()
		}
	}
	c.mu.Unlock()

	if !ok {
		kind := kindForKey(key)
		c.logger.Warn().Int("key", key).Str("kind", string(kind)).Msg("orphan event: no pending request")
		metrics.OrphanEventsTotal.WithLabelValues(string(kind)).Inc()
		return false
	}
	t.done <- payload
	return true
}

// expire fires from the ticket's timer. A concurrent Resolve may have won;
// the pending check under the lock decides exactly one outcome.
func (c *Correlator) expire(t *Ticket) {
	c.mu.Lock()
	_, stillPending := c.pending[t.Key]
	if stillPending {
		delete(c.pending, t.Key)
	}
	c.mu.Unlock()

	if !stillPending {
		return
	}
	c.logger.Warn().Int("key", t.Key).Str("kind", string(t.Kind)).
		Dur("age", time.Since(t.CreatedAt)).Msg("request timed out")
	metrics.RequestTimeoutsTotal.WithLabelValues(string(t.Kind)).Inc()
	t.done <- TimeoutResult{Key: t.Key, Kind: t.Kind}
}

// remove drops a pending ticket without delivering a payload, used when the
// request never reached the terminal or the caller gave up.
func (c *Correlator) remove(key int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.pending[key]; ok {
		delete(c.pending, key)
		if t.timer != nil {
			t.timer.Stop()
		}
	}
}

// Pending returns the number of requests still awaiting a response.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func kindForKey(key int) Kind {
	for kind, r := range keyRanges {
		if key >= r.lo && key <= r.hi {
			return kind
		}
	}
	return Kind("unknown")
}
