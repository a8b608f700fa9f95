package engine

import (
	"github.com/rs/zerolog"

	"marubot/internal/broker"
	"marubot/internal/correlator"
	"marubot/internal/domain"
)

// Compile-time interface check.
var _ broker.EventSink = (*Sink)(nil)

// Sink receives the terminal's events and routes them: correlated responses
// to the correlator, fills to the order manager, ticks to the orchestrator.
// Routing never blocks the terminal; the heavier downstream work runs on
// its own goroutines.
type Sink struct {
	corr         *correlator.Correlator
	orders       *OrderManager
	orchestrator *Orchestrator
	logger       zerolog.Logger

	connected chan error
}

// NewSink creates a Sink.
func NewSink(corr *correlator.Correlator, orders *OrderManager, orchestrator *Orchestrator, logger zerolog.Logger) *Sink {
	return &Sink{
		corr:         corr,
		orders:       orders,
		orchestrator: orchestrator,
		logger:       logger.With().Str("component", "sink").Logger(),
		connected:    make(chan error, 1),
	}
}

// Connected yields the result of the terminal's connect attempt.
func (s *Sink) Connected() <-chan error {
	return s.connected
}

// OnConnectResult reports the connect outcome.
func (s *Sink) OnConnectResult(err error) {
	select {
	case s.connected <- err:
	default:
		s.logger.Warn().Err(err).Msg("duplicate connect result dropped")
	}
}

// OnDataReceived routes a transaction-data response to its pending ticket.
func (s *Sink) OnDataReceived(data broker.TRData) {
	s.corr.Resolve(data.Key, data)
}

// OnOrderMessage decodes and routes an order acceptance or rejection to its
// pending ticket.
func (s *Sink) OnOrderMessage(key int, msg string) {
	s.corr.Resolve(key, broker.ParseOrderMessage(key, msg))
}

// OnFillEvent applies an execution report.
func (s *Sink) OnFillEvent(fill domain.Fill) {
	s.orders.ApplyFill(fill)
}

// OnMarketData feeds a tick into the pipeline.
func (s *Sink) OnMarketData(sample domain.PriceSample) {
	s.orchestrator.OnTick(sample)
}
