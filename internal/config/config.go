// Package config loads the application configuration from YAML and applies
// environment variable overrides.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the marubot trading system.
type Config struct {
	Storage    Storage    `yaml:"storage"`
	Broker     Broker     `yaml:"broker"`
	Logging    Logging    `yaml:"logging"`
	Metrics    Metrics    `yaml:"metrics"`
	Trading    Trading    `yaml:"trading"`
	Risk       Risk       `yaml:"risk"`
	Simulation Simulation `yaml:"simulation"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Broker holds the terminal session parameters.
type Broker struct {
	AccountNo          string `yaml:"account_no"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
	OrderTimeoutSecs   int    `yaml:"order_timeout_secs"`
	MaxInflightOrders  int    `yaml:"max_inflight_orders"`
	OrderRatePerMinute int    `yaml:"order_rate_per_minute"`
	ConnectRetries     int    `yaml:"connect_retries"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Trading defines the universe, the trading mode, and the session window.
type Trading struct {
	Universe            []string         `yaml:"universe"`
	Mode                string           `yaml:"mode"`
	MarketStart         string           `yaml:"market_start"`
	MarketEnd           string           `yaml:"market_end"`
	AccountBalance      float64          `yaml:"account_balance"`
	MonitorIntervalSecs int              `yaml:"monitor_interval_secs"`
	Strategies          []StrategyConfig `yaml:"strategies"`
}

// StrategyConfig names a strategy and carries its numeric parameters.
type StrategyConfig struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params"`
}

// Risk defines the pre-trade limits and exit thresholds.
type Risk struct {
	MaxPositionRatio  float64 `yaml:"max_position_ratio"`
	StopLossPct       float64 `yaml:"stop_loss_pct"`
	TakeProfitPct     float64 `yaml:"take_profit_pct"`
	MaxDailyLossRatio float64 `yaml:"max_daily_loss"`
	MaxDailyTrades    int     `yaml:"max_daily_trades"`
}

// Simulation tunes the simulated terminal.
type Simulation struct {
	IntervalMs int     `yaml:"interval_ms"`
	Volatility float64 `yaml:"price_volatility"`
	LatencyMs  int     `yaml:"latency_ms"`
	Seed       int64   `yaml:"seed"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills unset
// fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("MARUBOT_ACCOUNT_NO"); v != "" {
		cfg.Broker.AccountNo = v
	}
	if v := os.Getenv("MARUBOT_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("MARUBOT_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.AccountBalance = f
		}
	}
}

// applyDefaults fills zero-valued fields with the stock configuration the
// system ships with.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/marubot.db"
	}
	if cfg.Broker.RequestTimeoutSecs <= 0 {
		cfg.Broker.RequestTimeoutSecs = 10
	}
	if cfg.Broker.OrderTimeoutSecs <= 0 {
		cfg.Broker.OrderTimeoutSecs = 10
	}
	if cfg.Broker.MaxInflightOrders <= 0 {
		cfg.Broker.MaxInflightOrders = 3
	}
	if cfg.Broker.ConnectRetries <= 0 {
		cfg.Broker.ConnectRetries = 3
	}
	if len(cfg.Trading.Universe) == 0 {
		// Samsung Electronics, SK hynix, NAVER.
		cfg.Trading.Universe = []string{"005930", "000660", "035420"}
	}
	if cfg.Trading.Mode == "" {
		cfg.Trading.Mode = "test"
	}
	if cfg.Trading.MarketStart == "" {
		cfg.Trading.MarketStart = "09:00:00"
	}
	if cfg.Trading.MarketEnd == "" {
		cfg.Trading.MarketEnd = "15:30:00"
	}
	if cfg.Trading.AccountBalance <= 0 {
		cfg.Trading.AccountBalance = 10_000_000
	}
	if cfg.Trading.MonitorIntervalSecs <= 0 {
		cfg.Trading.MonitorIntervalSecs = 5
	}
	if len(cfg.Trading.Strategies) == 0 {
		cfg.Trading.Strategies = []StrategyConfig{{
			Name:   "rsi",
			Params: map[string]float64{"period": 14, "oversold": 30, "overbought": 70},
		}}
	}
	if cfg.Risk.MaxPositionRatio <= 0 {
		cfg.Risk.MaxPositionRatio = 0.1
	}
	if cfg.Risk.StopLossPct <= 0 {
		cfg.Risk.StopLossPct = 0.03
	}
	if cfg.Risk.TakeProfitPct <= 0 {
		cfg.Risk.TakeProfitPct = 0.07
	}
	if cfg.Risk.MaxDailyLossRatio <= 0 {
		cfg.Risk.MaxDailyLossRatio = 0.02
	}
	if cfg.Risk.MaxDailyTrades <= 0 {
		cfg.Risk.MaxDailyTrades = 10
	}
	if cfg.Simulation.IntervalMs <= 0 {
		cfg.Simulation.IntervalMs = 3000
	}
	if cfg.Simulation.Volatility <= 0 {
		cfg.Simulation.Volatility = 0.015
	}
	if cfg.Simulation.LatencyMs <= 0 {
		cfg.Simulation.LatencyMs = 50
	}
}
