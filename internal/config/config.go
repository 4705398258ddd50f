package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Symbols   []string                  `mapstructure:"symbols"`
	Cycle     CycleConfig               `mapstructure:"cycle"`
	Scanner   ScannerConfig             `mapstructure:"scanner"`
	Execution ExecutionConfig           `mapstructure:"execution"`
	Fees      FeesConfig                `mapstructure:"fees"`
	Exchanges map[string]ExchangeConfig `mapstructure:"exchanges"`
	Ledger    LedgerConfig              `mapstructure:"ledger"`
	Archive   ArchiveConfig             `mapstructure:"archive"`
	Dashboard DashboardConfig           `mapstructure:"dashboard"`
	Logging   LoggingConfig             `mapstructure:"logging"`
}

// CycleConfig controls the scan-execute-distribute loop.
type CycleConfig struct {
	IntervalMS          int `mapstructure:"interval_ms"`
	WarmupMS            int `mapstructure:"warmup_ms"`
	StatusLogIntervalMS int `mapstructure:"status_log_interval_ms"`
}

// ScannerConfig defines the opportunity filters.
type ScannerConfig struct {
	MaxStalenessMS int64   `mapstructure:"max_staleness_ms"`
	MinTradeUSD    float64 `mapstructure:"min_trade_usd"`
	MinProfitUSD   float64 `mapstructure:"min_profit_usd"`
}

// ExecutionConfig defines the paper-trading sizing and friction model.
type ExecutionConfig struct {
	CapitalFraction   float64 `mapstructure:"capital_fraction"`
	MaxTradeUSD       float64 `mapstructure:"max_trade_usd"`
	SlippageBps       float64 `mapstructure:"slippage_bps"`
	ImpactCoefficient float64 `mapstructure:"impact_coefficient"`
	BaseFeeRate       float64 `mapstructure:"base_fee_rate"`
	MinTradeUSD       float64 `mapstructure:"min_trade_usd"`
	MinProfitUSD      float64 `mapstructure:"min_profit_usd"`
	HistorySize       int     `mapstructure:"history_size"`
}

// FeesConfig holds the fallback rates charged to exchanges without their own entry.
type FeesConfig struct {
	DefaultTakerPercent float64 `mapstructure:"default_taker_percent"`
	DefaultMakerPercent float64 `mapstructure:"default_maker_percent"`
}

// ExchangeConfig defines settings for a specific exchange.
type ExchangeConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	TakerFeePercent   float64 `mapstructure:"taker_fee_percent"`
	MakerFeePercent   float64 `mapstructure:"maker_fee_percent"`
	InitialBalanceUSD float64 `mapstructure:"initial_balance_usd"`
	URL               string  `mapstructure:"url"`
}

// LedgerConfig selects the durable trade ledger.
type LedgerConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	SeedSize int    `mapstructure:"seed_size"`
}

// ArchiveConfig defines where the CSV ledger is uploaded on shutdown.
type ArchiveConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// DashboardConfig defines the WebSocket broadcast server.
type DashboardConfig struct {
	Addr         string `mapstructure:"addr"`
	Path         string `mapstructure:"path"`
	ClientBuffer int    `mapstructure:"client_buffer"`
}

// LoggingConfig defines the log level, format and destination.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Interval returns the cycle period.
func (c CycleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// Warmup returns the delay before the first cycle.
func (c CycleConfig) Warmup() time.Duration {
	return time.Duration(c.WarmupMS) * time.Millisecond
}

// StatusLogInterval returns the minimum gap between periodic status logs.
func (c CycleConfig) StatusLogInterval() time.Duration {
	return time.Duration(c.StatusLogIntervalMS) * time.Millisecond
}

// EnabledExchanges returns the names of every enabled exchange.
func (c *Config) EnabledExchanges() []string {
	var names []string
	for name, ex := range c.Exchanges {
		if ex.Enabled {
			names = append(names, name)
		}
	}
	return names
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("symbols", []string{
		"BTC-USDT", "ETH-USDT", "SOL-USDT",
		"DOGE-USDT", "PEPE-USDT", "WIF-USDT",
		"SUI-USDT", "APT-USDT", "AVAX-USDT",
	})

	v.SetDefault("cycle.interval_ms", 50)
	v.SetDefault("cycle.warmup_ms", 5000)
	v.SetDefault("cycle.status_log_interval_ms", 5000)

	v.SetDefault("scanner.max_staleness_ms", 5000)
	v.SetDefault("scanner.min_trade_usd", 10.0)
	v.SetDefault("scanner.min_profit_usd", 0.001)

	v.SetDefault("execution.capital_fraction", 0.20)
	v.SetDefault("execution.max_trade_usd", 0.0)
	v.SetDefault("execution.slippage_bps", 2.5)
	v.SetDefault("execution.impact_coefficient", 0.0010)
	v.SetDefault("execution.base_fee_rate", 0.0006)
	v.SetDefault("execution.min_trade_usd", 10.0)
	v.SetDefault("execution.min_profit_usd", 0.001)
	v.SetDefault("execution.history_size", 20)

	v.SetDefault("fees.default_taker_percent", 0.06)
	v.SetDefault("fees.default_maker_percent", 0.05)

	exchanges := []struct {
		name         string
		enabled      bool
		maker, taker float64
		balance      float64
	}{
		{"binance", true, 0.02, 0.05, 2500},
		{"bybit", true, 0.02, 0.06, 2500},
		{"hyperliquid", true, 0.00, 0.025, 2500},
		{"extended", true, 0.05, 0.05, 2500},
		{"kraken", false, 0.02, 0.05, 0},
	}
	for _, ex := range exchanges {
		prefix := "exchanges." + ex.name + "."
		v.SetDefault(prefix+"enabled", ex.enabled)
		v.SetDefault(prefix+"maker_fee_percent", ex.maker)
		v.SetDefault(prefix+"taker_fee_percent", ex.taker)
		v.SetDefault(prefix+"initial_balance_usd", ex.balance)
		v.SetDefault(prefix+"url", "")
	}

	v.SetDefault("ledger.driver", "csv")
	v.SetDefault("ledger.path", "trades_log.csv")
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ledger.seed_size", 20)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "ledger")
	v.SetDefault("archive.region", "")
	v.SetDefault("archive.access_key_id", "")
	v.SetDefault("archive.secret_access_key", "")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.path_style", false)

	v.SetDefault("dashboard.addr", "127.0.0.1:3030")
	v.SetDefault("dashboard.path", "/ws")
	v.SetDefault("dashboard.client_buffer", 16)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_age_days", 0)
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and the environment still apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("FLASHARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}

	err = config.Validate()
	return
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("config: at least one symbol is required")
	}
	if c.Cycle.IntervalMS <= 0 {
		return fmt.Errorf("config: cycle.interval_ms must be positive, got %d", c.Cycle.IntervalMS)
	}
	if c.Scanner.MaxStalenessMS <= 0 {
		return fmt.Errorf("config: scanner.max_staleness_ms must be positive, got %d", c.Scanner.MaxStalenessMS)
	}
	if c.Execution.CapitalFraction <= 0 || c.Execution.CapitalFraction > 1 {
		return fmt.Errorf("config: execution.capital_fraction must be in (0,1], got %v", c.Execution.CapitalFraction)
	}
	if c.Execution.MaxTradeUSD < 0 {
		return fmt.Errorf("config: execution.max_trade_usd must not be negative, got %v", c.Execution.MaxTradeUSD)
	}
	if c.Execution.HistorySize <= 0 {
		return fmt.Errorf("config: execution.history_size must be positive, got %d", c.Execution.HistorySize)
	}
	switch c.Ledger.Driver {
	case "csv", "sqlite":
		if c.Ledger.Path == "" {
			return fmt.Errorf("config: ledger.path is required for driver %q", c.Ledger.Driver)
		}
	case "postgres":
		if c.Ledger.DSN == "" {
			return errors.New("config: ledger.dsn is required for driver \"postgres\"")
		}
	default:
		return fmt.Errorf("config: unknown ledger driver %q", c.Ledger.Driver)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return errors.New("config: archive.bucket is required when the archive is enabled")
	}
	if len(c.EnabledExchanges()) < 2 {
		return errors.New("config: at least two exchanges must be enabled")
	}
	return nil
}
