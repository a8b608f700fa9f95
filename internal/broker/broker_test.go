package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marubot/internal/domain"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"75000", 75000},
		{"+75000", 75000},
		{"1,234,567", 1234567},
		{"-500", -500},
		{"-", 0},
		{"", 0},
		{"abc", 0},
		{" 42 ", 42},
	}
	for _, tt := range tests {
		if got := ParseInt(tt.in); got != tt.want {
			t.Errorf("ParseInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"+0.52%", 0.52},
		{"-1.25%", -1.25},
		{"1,234.5", 1234.5},
		{"-", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := ParseFloat(tt.in); got != tt.want {
			t.Errorf("ParseFloat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	// Price fields carry the change direction as a sign; it must be dropped.
	if got := ParsePrice("-75000"); got != 75000 {
		t.Errorf("ParsePrice(-75000) = %v, want 75000", got)
	}
	if got := ParsePrice("+75,000"); got != 75000 {
		t.Errorf("ParsePrice(+75,000) = %v, want 75000", got)
	}
}

func TestParseOrderMessage(t *testing.T) {
	ack := ParseOrderMessage(5001, "accepted no=SIM000042")
	if !ack.Accepted || ack.OrderNo != "SIM000042" || ack.Key != 5001 {
		t.Errorf("accepted message parsed as %+v", ack)
	}

	ack = ParseOrderMessage(5002, "rejected code=-451 msg=insufficient balance")
	if ack.Accepted || ack.Code != -451 || ack.Msg != "insufficient balance" {
		t.Errorf("rejected message parsed as %+v", ack)
	}

	// Unreadable messages are treated as rejections.
	ack = ParseOrderMessage(5003, "???")
	if ack.Accepted {
		t.Error("unrecognized message must not parse as accepted")
	}
}

func TestFillFromFields(t *testing.T) {
	fill := FillFromFields(map[string]string{
		"code":     "005930",
		"side":     "sell",
		"qty":      "10",
		"price":    "-75,000",
		"order_no": "SIM000001",
	})
	if fill.Code != "005930" || fill.Side != domain.OrderSideSell ||
		fill.Qty != 10 || fill.Price != 75000 || fill.OrderNo != "SIM000001" {
		t.Errorf("FillFromFields = %+v", fill)
	}
}

// recordingSink captures terminal events for assertions.
type recordingSink struct {
	mu       sync.Mutex
	connects []error
	data     []TRData
	orders   []OrderAck
	fills    []domain.Fill
	samples  []domain.PriceSample
}

func (r *recordingSink) OnConnectResult(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects = append(r.connects, err)
}

func (r *recordingSink) OnDataReceived(data TRData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, data)
}

func (r *recordingSink) OnOrderMessage(key int, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, ParseOrderMessage(key, msg))
}

func (r *recordingSink) OnFillEvent(fill domain.Fill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fills = append(r.fills, fill)
}

func (r *recordingSink) OnMarketData(sample domain.PriceSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sample)
}

func newTestSim(t *testing.T, cfg SimConfig) (*SimTerminal, *recordingSink) {
	t.Helper()
	if cfg.Universe == nil {
		cfg.Universe = []string{"005930"}
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	sim := NewSimTerminal(cfg, zerolog.Nop())
	sink := &recordingSink{}
	sim.SetSink(sink)
	if err := sim.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return sim, sink
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestSimTerminalRequiresConnect(t *testing.T) {
	sim := NewSimTerminal(SimConfig{Universe: []string{"005930"}, Seed: 1}, zerolog.Nop())
	sim.SetSink(&recordingSink{})
	err := sim.SendDataRequest(DataRequest{Key: 1000})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendDataRequest before Connect: err = %v, want ErrNotConnected", err)
	}
	err = sim.SendOrder(OrderRequest{Key: 5000})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendOrder before Connect: err = %v, want ErrNotConnected", err)
	}
}

func TestSimTerminalDataRequest(t *testing.T) {
	sim, sink := newTestSim(t, SimConfig{Latency: time.Millisecond})
	err := sim.SendDataRequest(DataRequest{
		Name:   "stock_info",
		TRCode: "opt10001",
		Params: map[string]string{"code": "005930"},
		Key:    1000,
	})
	if err != nil {
		t.Fatalf("SendDataRequest: %v", err)
	}
	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.data) == 1
	})
	got := sink.data[0]
	if got.Key != 1000 || got.Fields["code"] != "005930" {
		t.Errorf("data event = %+v", got)
	}
	if ParsePrice(got.Fields["price"]) <= 0 {
		t.Errorf("price field %q did not parse to a positive price", got.Fields["price"])
	}
}

func TestSimTerminalOrderAcceptAndFill(t *testing.T) {
	sim, sink := newTestSim(t, SimConfig{Latency: time.Millisecond})
	err := sim.SendOrder(OrderRequest{
		Account: "8012345611",
		Side:    domain.OrderSideBuy,
		Code:    "005930",
		Qty:     10,
		Price:   75000,
		Key:     5000,
	})
	if err != nil {
		t.Fatalf("SendOrder: %v", err)
	}
	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.orders) == 1 && len(sink.fills) == 1
	})
	if !sink.orders[0].Accepted || sink.orders[0].Key != 5000 {
		t.Errorf("order ack = %+v", sink.orders[0])
	}
	fill := sink.fills[0]
	if fill.Code != "005930" || fill.Qty != 10 || fill.Price != 75000 || fill.OrderNo != sink.orders[0].OrderNo {
		t.Errorf("fill = %+v", fill)
	}
}

func TestSimTerminalRejectOrders(t *testing.T) {
	sim, sink := newTestSim(t, SimConfig{Latency: time.Millisecond, RejectOrders: true})
	if err := sim.SendOrder(OrderRequest{Code: "005930", Qty: 1, Key: 5000}); err != nil {
		t.Fatalf("SendOrder: %v", err)
	}
	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.orders) == 1
	})
	if sink.orders[0].Accepted {
		t.Error("order should have been rejected")
	}
	sink.mu.Lock()
	fills := len(sink.fills)
	sink.mu.Unlock()
	if fills != 0 {
		t.Errorf("rejected order produced %d fills", fills)
	}
}

func TestSimTerminalFailDispatch(t *testing.T) {
	sim, _ := newTestSim(t, SimConfig{FailDispatch: true})
	err := sim.SendOrder(OrderRequest{Code: "005930", Qty: 1, Key: 5000})
	var brokerErr *Error
	if !errors.As(err, &brokerErr) {
		t.Fatalf("SendOrder: err = %v, want *broker.Error", err)
	}
	if brokerErr.Code == DispatchOK {
		t.Error("dispatch failure must not report DispatchOK")
	}
}

func TestSimTerminalFeed(t *testing.T) {
	sim, sink := newTestSim(t, SimConfig{Interval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sim.Run(ctx)
	}()
	waitFor(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.samples) >= 3
	})
	cancel()
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, sample := range sink.samples {
		if sample.Price <= 0 {
			t.Errorf("sample price %v must stay positive", sample.Price)
		}
		if sample.Code != "005930" {
			t.Errorf("unexpected code %q in feed", sample.Code)
		}
	}
}

func TestSimTerminalInstruments(t *testing.T) {
	sim, _ := newTestSim(t, SimConfig{})
	if name := sim.InstrumentName("005930"); name != "삼성전자" {
		t.Errorf("InstrumentName(005930) = %q", name)
	}
	if name := sim.InstrumentName("999999"); name != "999999" {
		t.Errorf("unknown code should echo back, got %q", name)
	}
	if codes := sim.InstrumentsByMarket(domain.MarketKOSPI); len(codes) != 1 {
		t.Errorf("InstrumentsByMarket(KOSPI) = %v", codes)
	}
	if codes := sim.InstrumentsByMarket(domain.MarketKOSDAQ); codes != nil {
		t.Errorf("InstrumentsByMarket(KOSDAQ) = %v, want nil", codes)
	}
}
