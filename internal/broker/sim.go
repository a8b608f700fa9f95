package broker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"marubot/internal/domain"
)

// SimConfig tunes the simulated terminal.
type SimConfig struct {
	Universe   []string      // instrument codes to feed
	Interval   time.Duration // tick interval per instrument
	Volatility float64       // per-tick price move, as a fraction of price
	Latency    time.Duration // delay before asynchronous responses

	// Failure injection for tests.
	RejectOrders     bool // reject every order
	DropDataRequests bool // accept data requests but never answer them
	FailDispatch     bool // fail the immediate dispatch of every order

	Seed int64 // rng seed; 0 seeds from the clock
}

// simBasePrices are the starting prices for well-known codes. Unknown codes
// start at a generic mid-cap price.
var simBasePrices = map[string]float64{
	"005930": 75000,  // Samsung Electronics
	"000660": 140000, // SK hynix
	"035420": 190000, // NAVER
}

var simNames = map[string]string{
	"005930": "삼성전자",
	"000660": "SK하이닉스",
	"035420": "NAVER",
}

// SimTerminal is an in-process Terminal that feeds random-walk market data
// and answers data and order requests after a configurable latency. It
// exists so the whole pipeline can run in test mode with no live session.
type SimTerminal struct {
	cfg    SimConfig
	logger zerolog.Logger

	mu        sync.Mutex
	sink      EventSink
	connected bool
	prices    map[string]float64
	rng       *rand.Rand
	orderSeq  int
}

var _ Terminal = (*SimTerminal)(nil)

// NewSimTerminal creates a simulated terminal. Universe must be non-empty.
func NewSimTerminal(cfg SimConfig, logger zerolog.Logger) *SimTerminal {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	prices := make(map[string]float64, len(cfg.Universe))
	for _, code := range cfg.Universe {
		base, ok := simBasePrices[code]
		if !ok {
			base = 50000
		}
		prices[code] = base
	}
	return &SimTerminal{
		cfg:    cfg,
		logger: logger.With().Str("component", "sim_terminal").Logger(),
		prices: prices,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// SetSink installs the event receiver.
func (s *SimTerminal) SetSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Connect marks the session established and reports the result through the
// sink, matching the asynchronous connect of a live terminal.
func (s *SimTerminal) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.sink == nil {
		s.mu.Unlock()
		return fmt.Errorf("sim terminal: SetSink must be called before Connect")
	}
	s.connected = true
	sink := s.sink
	s.mu.Unlock()

	go func() {
		time.Sleep(s.cfg.Latency)
		sink.OnConnectResult(nil)
	}()
	s.logger.Info().Msg("simulated session established")
	return nil
}

// Run feeds random-walk ticks for every universe instrument until the
// context is cancelled. It blocks and is intended to run on its own
// goroutine.
func (s *SimTerminal) Run(ctx context.Context) error {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.emitTicks()
		}
	}
}

func (s *SimTerminal) emitTicks() {
	s.mu.Lock()
	sink := s.sink
	if sink == nil || !s.connected {
		s.mu.Unlock()
		return
	}
	samples := make([]domain.PriceSample, 0, len(s.cfg.Universe))
	now := time.Now()
	for _, code := range s.cfg.Universe {
		prev := s.prices[code]
		// Symmetric random walk, clipped so prices stay positive.
		move := (s.rng.Float64()*2 - 1) * s.cfg.Volatility
		next := prev * (1 + move)
		if next < 1 {
			next = 1
		}
		s.prices[code] = next
		samples = append(samples, domain.PriceSample{
			Code:       code,
			Price:      next,
			Volume:     int64(s.rng.Intn(10000) + 100),
			ChangeRate: move * 100,
			Timestamp:  now,
		})
	}
	s.mu.Unlock()

	for _, sample := range samples {
		sink.OnMarketData(sample)
	}
}

// SendDataRequest answers stock-info requests after the configured latency.
// With DropDataRequests set, requests are accepted but never answered, which
// exercises the caller's timeout path.
func (s *SimTerminal) SendDataRequest(req DataRequest) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	sink := s.sink
	code := req.Params["code"]
	price := s.prices[code]
	s.mu.Unlock()

	if s.cfg.DropDataRequests {
		s.logger.Warn().Int("key", req.Key).Str("tr", req.TRCode).Msg("dropping data request")
		return nil
	}

	go func() {
		time.Sleep(s.cfg.Latency)
		sink.OnDataReceived(TRData{
			Key:    req.Key,
			Name:   req.Name,
			TRCode: req.TRCode,
			Fields: map[string]string{
				"code":        code,
				"name":        s.InstrumentName(code),
				"price":       fmt.Sprintf("%.0f", price),
				"volume":      "1234567",
				"change_rate": "+0.52%",
			},
		})
	}()
	return nil
}

// SendOrder dispatches an order. Acceptance and the fill arrive through the
// sink after the configured latency.
func (s *SimTerminal) SendOrder(req OrderRequest) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.cfg.FailDispatch {
		s.mu.Unlock()
		return &Error{Code: -308, Msg: "dispatch failed"}
	}
	sink := s.sink
	s.orderSeq++
	orderNo := fmt.Sprintf("SIM%06d", s.orderSeq)
	fillPrice := req.Price
	if fillPrice <= 0 || req.PriceType == PriceTypeMarket {
		fillPrice = s.prices[req.Code]
	}
	s.mu.Unlock()

	go func() {
		time.Sleep(s.cfg.Latency)
		if s.cfg.RejectOrders {
			sink.OnOrderMessage(req.Key, "rejected code=-451 msg=insufficient balance")
			return
		}
		sink.OnOrderMessage(req.Key, "accepted no="+orderNo)

		// The fill follows the acknowledgment, as it does on a live session.
		time.Sleep(s.cfg.Latency)
		sink.OnFillEvent(domain.Fill{
			Code:      req.Code,
			Side:      req.Side,
			Qty:       req.Qty,
			Price:     fillPrice,
			OrderNo:   orderNo,
			Timestamp: time.Now(),
		})
	}()
	return nil
}

// InstrumentName returns the display name for a code, or the code itself
// for unknown instruments.
func (s *SimTerminal) InstrumentName(code string) string {
	if name, ok := simNames[code]; ok {
		return name
	}
	return code
}

// InstrumentsByMarket returns the simulated universe. The simulation keeps
// every instrument in KOSPI.
func (s *SimTerminal) InstrumentsByMarket(market domain.Market) []string {
	if market != domain.MarketKOSPI {
		return nil
	}
	out := make([]string, len(s.cfg.Universe))
	copy(out, s.cfg.Universe)
	return out
}

// Accounts returns the simulated account list.
func (s *SimTerminal) Accounts() []string {
	return []string{"8012345611"}
}

// Price returns the current simulated price for a code. Test helper.
func (s *SimTerminal) Price(code string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prices[code]
}
