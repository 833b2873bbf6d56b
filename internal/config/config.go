// Package config defines all configuration for the trading core.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// MMSIM_* environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Sim       SimConfig       `mapstructure:"sim"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SimConfig shapes the market simulator backing every session.
//
//   - Participants: roster size (the standard population is 1430).
//   - TickValue: price per tick of the integer price grid.
//   - InitialFair: starting fair value in price units.
//   - SigmaFvBps: per-tick fair value perturbation, in bps of F.
//   - BarWindow: ticks aggregated per bar.
type SimConfig struct {
	Participants int     `mapstructure:"participants"`
	TickValue    float64 `mapstructure:"tick_value"`
	InitialFair  float64 `mapstructure:"initial_fair"`
	SigmaFvBps   float64 `mapstructure:"sigma_fv_bps"`
	BarWindow    int     `mapstructure:"bar_window"`
}

// StrategyConfig is the default parameter bundle applied when a session
// is started without explicit parameters.
type StrategyConfig struct {
	MaxInventory      int64   `mapstructure:"max_inventory"`
	EntryThresholdBps float64 `mapstructure:"entry_threshold_bps"`
	ProcessNoise      float64 `mapstructure:"process_noise"`
	MeasurementNoise  float64 `mapstructure:"measurement_noise"`
	Lookback          int     `mapstructure:"lookback"`
	AutoTrade         bool    `mapstructure:"auto_trade"`
}

// ExecutionConfig tunes the transaction-cost model and analytics scaling.
type ExecutionConfig struct {
	Model          string  `mapstructure:"model"` // naive | realistic | conservative
	SlippageBps    float64 `mapstructure:"slippage_bps"`
	ImpactFactor   float64 `mapstructure:"impact_factor"`
	CommissionRate float64 `mapstructure:"commission_rate"`
	TicksPerYear   float64 `mapstructure:"ticks_per_year"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate"`
	RecentTrades   int     `mapstructure:"recent_trades"`
	VolumeWindow   int     `mapstructure:"volume_window"`
}

// RiskConfig sets per-session stop limits. Zero disables a limit.
type RiskConfig struct {
	MaxDrawdownPct float64 `mapstructure:"max_drawdown_pct"`
	MaxLossPct     float64 `mapstructure:"max_loss_pct"`
}

// ServerConfig controls the HTTP control surface.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	StreamInterval time.Duration `mapstructure:"stream_interval"`
}

// StoreConfig sets where final session reports are persisted.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MMSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sim.participants", 1430)
	v.SetDefault("sim.tick_value", 0.01)
	v.SetDefault("sim.initial_fair", 100.0)
	v.SetDefault("sim.sigma_fv_bps", 10.0)
	v.SetDefault("sim.bar_window", 1)

	v.SetDefault("strategy.max_inventory", 5)
	v.SetDefault("strategy.entry_threshold_bps", 10.0)
	v.SetDefault("strategy.process_noise", 0.01)
	v.SetDefault("strategy.measurement_noise", 0.5)
	v.SetDefault("strategy.lookback", 60)
	v.SetDefault("strategy.auto_trade", true)

	v.SetDefault("execution.model", "realistic")
	v.SetDefault("execution.slippage_bps", 2.0)
	v.SetDefault("execution.impact_factor", 0.05)
	v.SetDefault("execution.commission_rate", 0.0005)
	// One tick per second over a 252-day, 6.5-hour trading year.
	v.SetDefault("execution.ticks_per_year", 252*390*60)
	v.SetDefault("execution.risk_free_rate", 0.0)
	v.SetDefault("execution.recent_trades", 10)
	v.SetDefault("execution.volume_window", 20)

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.stream_interval", time.Second)

	v.SetDefault("store.data_dir", "data")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Sim.Participants <= 0 {
		return fmt.Errorf("sim.participants must be > 0")
	}
	if c.Sim.TickValue <= 0 {
		return fmt.Errorf("sim.tick_value must be > 0")
	}
	if c.Sim.InitialFair <= 0 {
		return fmt.Errorf("sim.initial_fair must be > 0")
	}
	if c.Sim.BarWindow <= 0 {
		return fmt.Errorf("sim.bar_window must be > 0")
	}
	switch c.Execution.Model {
	case "naive", "realistic", "conservative":
	default:
		return fmt.Errorf("execution.model must be one of: naive, realistic, conservative")
	}
	if c.Execution.CommissionRate < 0 {
		return fmt.Errorf("execution.commission_rate must be >= 0")
	}
	if c.Execution.TicksPerYear <= 0 {
		return fmt.Errorf("execution.ticks_per_year must be > 0")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port")
	}
	return nil
}
