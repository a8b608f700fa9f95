// marubot-sim runs the full trading pipeline against the simulated terminal
// for a bounded duration and prints a portfolio summary, for strategy and
// risk-parameter experiments without a live session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"marubot/internal/broker"
	"marubot/internal/config"
	"marubot/internal/correlator"
	"marubot/internal/domain"
	"marubot/internal/engine"
	"marubot/internal/marketdata"
	"marubot/internal/risk"
	"marubot/internal/strategy"
	"marubot/internal/strategy/builtins"
	"marubot/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config/marubot.yaml", "config file path")
	duration := flag.Duration("duration", 2*time.Minute, "how long to run the simulation")
	interval := flag.Duration("interval", 100*time.Millisecond, "simulated tick interval")
	seed := flag.Int64("seed", 0, "rng seed, 0 uses the clock")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level)

	data := marketdata.NewStore()
	sim := broker.NewSimTerminal(broker.SimConfig{
		Universe:   cfg.Trading.Universe,
		Interval:   *interval,
		Volatility: cfg.Simulation.Volatility,
		Latency:    time.Duration(cfg.Simulation.LatencyMs) * time.Millisecond,
		Seed:       *seed,
	}, logger)

	corr := correlator.New(logger)
	riskMgr := risk.NewManager(risk.Limits{
		MaxPositionRatio:  cfg.Risk.MaxPositionRatio,
		StopLossPct:       cfg.Risk.StopLossPct,
		TakeProfitPct:     cfg.Risk.TakeProfitPct,
		MaxDailyLossRatio: cfg.Risk.MaxDailyLossRatio,
		MaxDailyTrades:    cfg.Risk.MaxDailyTrades,
	}, logger)
	orders := engine.NewOrderManager(engine.OrderManagerConfig{
		Terminal:     sim,
		Correlator:   corr,
		Risk:         riskMgr,
		Account:      cfg.Broker.AccountNo,
		OrderTimeout: time.Duration(cfg.Broker.OrderTimeoutSecs) * time.Second,
		MaxInflight:  int64(cfg.Broker.MaxInflightOrders),
	}, logger)

	strategies, err := builtins.FromConfig(cfg.Trading.Strategies)
	if err != nil {
		logger.Fatal().Err(err).Msg("building strategies")
	}
	eng := strategy.NewEngine(strategy.FirstMatchPolicy{})
	for _, s := range strategies {
		eng.Register(s)
	}

	orch := engine.NewOrchestrator(engine.OrchestratorConfig{
		Data:            data,
		Engine:          eng,
		Risk:            riskMgr,
		Orders:          orders,
		Calendar:        util.NewTradingCalendar(cfg.Trading.MarketStart, cfg.Trading.MarketEnd),
		Mode:            domain.ModeTest,
		AccountBalance:  cfg.Trading.AccountBalance,
		MonitorInterval: time.Second,
	}, logger)

	sink := engine.NewSink(corr, orders, orch, logger)
	sim.SetSink(sink)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	if err := sim.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("connecting simulated terminal")
	}
	if err := <-sink.Connected(); err != nil {
		logger.Fatal().Err(err).Msg("simulated session failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sim.Run(gctx) })
	g.Go(func() error { return orch.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("simulation stopped")
		os.Exit(1)
	}

	printSummary(sim, orders, riskMgr, data)
}

func printSummary(sim *broker.SimTerminal, orders *engine.OrderManager, riskMgr *risk.Manager, data *marketdata.Store) {
	fmt.Println("=== simulation summary ===")
	var unrealized float64
	for _, pos := range orders.Positions() {
		current, _ := data.CurrentPrice(pos.Code)
		pnl := float64(pos.Quantity) * (current - pos.AvgPrice)
		unrealized += pnl
		fmt.Printf("%-8s %-12s qty=%-6d avg=%-10.0f last=%-10.0f unrealized=%+.0f\n",
			pos.Code, sim.InstrumentName(pos.Code), pos.Quantity, pos.AvgPrice, current, pnl)
	}
	fmt.Printf("trades=%d realized=%+.0f unrealized=%+.0f\n",
		riskMgr.DailyTrades(), riskMgr.DailyPnL(), unrealized)
}
