package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"marubot/internal/broker"
	"marubot/internal/config"
	"marubot/internal/correlator"
	"marubot/internal/domain"
	"marubot/internal/engine"
	"marubot/internal/marketdata"
	"marubot/internal/metrics"
	"marubot/internal/risk"
	"marubot/internal/store"
	"marubot/internal/strategy"
	"marubot/internal/strategy/builtins"
	"marubot/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfgPath := "config/marubot.yaml"
	if p := os.Getenv("MARUBOT_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	logger.Info().Str("mode", cfg.Trading.Mode).
		Strs("universe", cfg.Trading.Universe).Msg("marubot-trader starting")

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening sqlite store")
	}
	defer db.Close()

	archiver := marketdata.NewArchiver(cfg.Storage.DataDir)

	sim := broker.NewSimTerminal(broker.SimConfig{
		Universe:   cfg.Trading.Universe,
		Interval:   time.Duration(cfg.Simulation.IntervalMs) * time.Millisecond,
		Volatility: cfg.Simulation.Volatility,
		Latency:    time.Duration(cfg.Simulation.LatencyMs) * time.Millisecond,
		Seed:       cfg.Simulation.Seed,
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
		RatePerMin:   cfg.Broker.OrderRatePerMinute,
		OrderStore:   db,
		FillStore:    db,
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
		Data:            marketdata.NewStore(),
		Archiver:        archiver,
		Engine:          eng,
		Risk:            riskMgr,
		Orders:          orders,
		Signals:         db,
		Calendar:        util.NewTradingCalendar(cfg.Trading.MarketStart, cfg.Trading.MarketEnd),
		Mode:            domain.TradingMode(cfg.Trading.Mode),
		AccountBalance:  cfg.Trading.AccountBalance,
		MonitorInterval: time.Duration(cfg.Trading.MonitorIntervalSecs) * time.Second,
	}, logger)

	sink := engine.NewSink(corr, orders, orch, logger)
	sim.SetSink(sink)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := util.Retry(connectCtx, cfg.Broker.ConnectRetries, time.Second, func() error {
		return sim.Connect(connectCtx)
	}); err != nil {
		logger.Fatal().Err(err).Msg("connecting to terminal")
	}
	select {
	case err := <-sink.Connected():
		if err != nil {
			logger.Fatal().Err(err).Msg("terminal session failed")
		}
	case <-connectCtx.Done():
		logger.Fatal().Msg("no connect result from terminal")
	}
	logger.Info().Strs("accounts", sim.Accounts()).Msg("terminal connected")

	// Snapshot the universe before the feed starts, so startup logs show
	// what is being traded and a broken instrument code fails loudly.
	dataClient := engine.NewDataClient(sim, corr, time.Duration(cfg.Broker.RequestTimeoutSecs)*time.Second)
	for _, code := range cfg.Trading.Universe {
		info, err := dataClient.StockInfo(ctx, code)
		if err != nil {
			logger.Fatal().Err(err).Str("code", code).Msg("looking up instrument")
		}
		logger.Info().Str("code", info.Code).Str("name", info.Name).
			Float64("price", info.Price).Msg("instrument")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sim.Run(gctx) })
	g.Go(func() error { return orch.Run(gctx) })
	g.Go(func() error { return archiver.Run(gctx.Done(), time.Minute) })
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			logger.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listening")
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("trader stopped")
		os.Exit(1)
	}
	logger.Info().Msg("trader stopped")
}
