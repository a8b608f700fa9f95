package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"marubot/internal/domain"
	"marubot/internal/marketdata"
	"marubot/internal/metrics"
	"marubot/internal/risk"
	"marubot/internal/store"
	"marubot/internal/strategy"
	"marubot/internal/util"
)

// Orchestrator drives the trading pipeline. Ticks flow from the terminal
// through the market-data store, the strategy engine, and the risk gates
// into order submissions; a periodic monitor exits positions that hit their
// stop-loss or take-profit thresholds.
type Orchestrator struct {
	data     *marketdata.Store
	archiver *marketdata.Archiver // optional, nil disables archiving
	engine   *strategy.Engine
	risk     *risk.Manager
	orders   *OrderManager
	signals  store.SignalStore // optional, nil disables persistence
	calendar *util.TradingCalendar
	logger   zerolog.Logger

	mode            domain.TradingMode
	balance         float64
	monitorInterval time.Duration

	mu          sync.Mutex
	sessionDate string
	exiting     map[string]bool // codes with an exit order in flight
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Data     *marketdata.Store
	Archiver *marketdata.Archiver
	Engine   *strategy.Engine
	Risk     *risk.Manager
	Orders   *OrderManager
	Signals  store.SignalStore
	Calendar *util.TradingCalendar

	Mode            domain.TradingMode
	AccountBalance  float64
	MonitorInterval time.Duration
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig, logger zerolog.Logger) *Orchestrator {
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 5 * time.Second
	}
	return &Orchestrator{
		data:            cfg.Data,
		archiver:        cfg.Archiver,
		engine:          cfg.Engine,
		risk:            cfg.Risk,
		orders:          cfg.Orders,
		signals:         cfg.Signals,
		calendar:        cfg.Calendar,
		logger:          logger.With().Str("component", "orchestrator").Logger(),
		mode:            cfg.Mode,
		balance:         cfg.AccountBalance,
		monitorInterval: cfg.MonitorInterval,
		exiting:         make(map[string]bool),
	}
}

// OnTick runs the pipeline for one market-data sample. It is called from
// the terminal's event goroutine; order submissions block on the terminal,
// so they run on their own goroutines.
func (o *Orchestrator) OnTick(sample domain.PriceSample) {
	metrics.TicksTotal.WithLabelValues(sample.Code).Inc()
	o.data.Update(sample)
	if o.archiver != nil {
		o.archiver.Record(sample)
	}
	o.rollSession(sample.Timestamp)

	if !o.tradingAllowed(sample.Timestamp) {
		return
	}

	sig := o.engine.GenerateSignal(sample.Code, o.data)
	if sig.Action == domain.ActionHold {
		return
	}
	metrics.SignalsTotal.WithLabelValues(sig.Code, string(sig.Action)).Inc()
	o.logger.Info().Str("code", sig.Code).Str("action", string(sig.Action)).
		Float64("confidence", sig.Confidence).Str("reason", sig.Reason).Msg("signal")
	if o.signals != nil {
		if err := o.signals.SaveSignal(context.Background(), &sig); err != nil {
			o.logger.Error().Err(err).Str("code", sig.Code).Msg("persisting signal")
		}
	}

	if !o.risk.CheckLimits(sig, o.balance) {
		return
	}

	switch sig.Action {
	case domain.ActionBuy:
		qty := o.risk.PositionSize(sig, o.balance, sample.Price)
		if qty <= 0 {
			return
		}
		go o.submit(domain.OrderSideBuy, sig.Code, qty, sample.Price)
	case domain.ActionSell:
		pos := o.orders.Position(sig.Code)
		if pos.Quantity <= 0 {
			return
		}
		go o.submit(domain.OrderSideSell, sig.Code, pos.Quantity, sample.Price)
	}
}

// Run drives the position monitor until the context is cancelled. The tick
// pipeline itself is event-driven and needs no loop here.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info().Str("mode", string(o.mode)).Dur("monitor_interval", o.monitorInterval).
		Strs("strategies", o.engine.Strategies()).Msg("orchestrator running")

	ticker := time.NewTicker(o.monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now()
			o.rollSession(now)
			if o.tradingAllowed(now) {
				o.checkPositions()
			}
		}
	}
}

// checkPositions evaluates every open position against the stop-loss and
// take-profit thresholds and exits the ones that trigger. One exit per code
// may be in flight at a time.
func (o *Orchestrator) checkPositions() {
	for _, pos := range o.orders.Positions() {
		current, ok := o.data.CurrentPrice(pos.Code)
		if !ok || current <= 0 {
			continue
		}

		var trigger string
		switch {
		case o.risk.ShouldStopLoss(pos.AvgPrice, current, risk.SideLong):
			trigger = "stop_loss"
		case o.risk.ShouldTakeProfit(pos.AvgPrice, current, risk.SideLong):
			trigger = "take_profit"
		default:
			continue
		}

		o.mu.Lock()
		if o.exiting[pos.Code] {
			o.mu.Unlock()
			continue
		}
		o.exiting[pos.Code] = true
		o.mu.Unlock()

		o.logger.Info().Str("code", pos.Code).Str("trigger", trigger).
			Float64("entry", pos.AvgPrice).Float64("current", current).Msg("exiting position")
		go func(pos domain.Position, price float64) {
			defer func() {
				o.mu.Lock()
				delete(o.exiting, pos.Code)
				o.mu.Unlock()
			}()
			o.submit(domain.OrderSideSell, pos.Code, pos.Quantity, price)
		}(pos, current)
	}
}

func (o *Orchestrator) submit(side domain.OrderSide, code string, qty int64, price float64) {
	order, err := o.orders.SubmitOrder(context.Background(), side, code, qty, price)
	if err != nil {
		o.logger.Error().Err(err).Str("code", code).Str("side", string(side)).Msg("order failed")
		return
	}
	o.logger.Debug().Str("order_id", order.ID).Str("status", string(order.Status)).Msg("order settled")
}

// tradingAllowed gates the pipeline by trading mode: normal mode trades only
// while the market is open; test and 24hour modes always trade.
func (o *Orchestrator) tradingAllowed(t time.Time) bool {
	switch o.mode {
	case domain.ModeTest, domain.Mode24Hour:
		return true
	default:
		return o.calendar.IsMarketOpen(t)
	}
}

// rollSession resets the daily risk counters when the calendar moves to a
// new trading day.
func (o *Orchestrator) rollSession(t time.Time) {
	date := o.calendar.SessionDate(t)
	o.mu.Lock()
	rolled := o.sessionDate != "" && o.sessionDate != date
	o.sessionDate = date
	o.mu.Unlock()
	if rolled {
		o.logger.Info().Str("session", date).Msg("new trading session")
		o.risk.Reset()
	}
}
