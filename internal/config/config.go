// Package config provides configuration management for the scanner.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	scanerrors "spread-scanner/internal/errors"
)

// ScanMode selects how wide a cycle scans.
type ScanMode string

const (
	ModeQuick  ScanMode = "quick"  // first 25 universe symbols
	ModeFull   ScanMode = "full"   // whole configured universe
	ModeCustom ScanMode = "custom" // caller-supplied symbol list
)

// SpreadType selects which spread kinds Layer 3 constructs.
type SpreadType string

const (
	SpreadTypePut  SpreadType = "put"
	SpreadTypeCall SpreadType = "call"
	SpreadTypeBoth SpreadType = "both"
)

// Config holds all application configuration. It is immutable for the
// duration of a scan cycle; every cycle receives it by value.
type Config struct {
	Trigger      TriggerConfig      `mapstructure:"trigger"`
	Fundamentals FundamentalsConfig `mapstructure:"fundamentals"`
	Risk         RiskConfig         `mapstructure:"risk"`
	Scan         ScanConfig         `mapstructure:"scan"`
	Data         DataConfig         `mapstructure:"data"`
}

// TriggerConfig holds the macro divergence gate settings.
type TriggerConfig struct {
	EqualWeightIndex string  `mapstructure:"equal_weight_index"`
	CapWeightIndex   string  `mapstructure:"cap_weight_index"`
	Threshold        float64 `mapstructure:"rsp_spy_threshold"` // percent
	LookbackDays     int     `mapstructure:"lookback_days"`
}

// FundamentalsConfig holds the Layer 1 screen settings.
type FundamentalsConfig struct {
	MaxCorrelation float64  `mapstructure:"max_correlation"`
	AllowedSectors []string `mapstructure:"allowed_sectors"` // empty disables the sector check
}

// RiskConfig holds Layer 4 and position sizing settings.
type RiskConfig struct {
	PortfolioSize      float64 `mapstructure:"portfolio_size"`
	MinExpectedValue   float64 `mapstructure:"min_expected_value"`   // fraction, 0.20 = 20%
	MaxPositionPct     float64 `mapstructure:"max_position_pct"`     // percent of portfolio
	PerTradeRiskPct    float64 `mapstructure:"per_trade_risk_pct"`   // percent of portfolio
	StopLossMultiple   float64 `mapstructure:"stop_loss_multiple"`   // multiple of max loss
	MaxPositions       int     `mapstructure:"max_positions"`        // open positions across the book
	MaxSectorPositions int     `mapstructure:"max_sector_positions"` // open positions per sector
}

// ScanConfig holds cycle orchestration settings.
type ScanConfig struct {
	Mode        ScanMode   `mapstructure:"scan_mode"`
	SpreadType  SpreadType `mapstructure:"spread_type"`
	Concurrency int        `mapstructure:"concurrency"`
	Universe    []string   `mapstructure:"universe"`
}

// DataConfig holds cache and provider settings.
type DataConfig struct {
	CacheTTLMinutes       int `mapstructure:"cache_ttl_minutes"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	RateLimitPerHour      int `mapstructure:"rate_limit_per_hour"`
	RetryMaxAttempts      int `mapstructure:"retry_max_attempts"`
}

// CacheTTL returns the cache entry lifetime.
func (d DataConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLMinutes) * time.Minute
}

// RequestTimeout returns the per-request deadline.
func (d DataConfig) RequestTimeout() time.Duration {
	return time.Duration(d.RequestTimeoutSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Trigger: TriggerConfig{
			EqualWeightIndex: "RSP",
			CapWeightIndex:   "SPY",
			Threshold:        8.0,
			LookbackDays:     252,
		},
		Fundamentals: FundamentalsConfig{
			MaxCorrelation: -0.3,
		},
		Risk: RiskConfig{
			PortfolioSize:      100000,
			MinExpectedValue:   0.20,
			MaxPositionPct:     2.5,
			PerTradeRiskPct:    2.5,
			StopLossMultiple:   2.0,
			MaxPositions:       15,
			MaxSectorPositions: 3,
		},
		Scan: ScanConfig{
			Mode:        ModeFull,
			SpreadType:  SpreadTypeBoth,
			Concurrency: 4,
		},
		Data: DataConfig{
			CacheTTLMinutes:       15,
			RequestTimeoutSeconds: 10,
			RateLimitPerHour:      2000,
			RetryMaxAttempts:      3,
		},
	}
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/spread-scanner"
	}
	return filepath.Join(home, ".config", "spread-scanner")
}

// Load loads configuration from the specified directory, creating a
// template on first run. If configDir is empty, uses the default directory.
func Load(configDir string) (Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, scanerrors.Wrap(err, "reading config.toml")
		}
		if err := writeTemplate(configDir); err != nil {
			return Config{}, scanerrors.Wrap(err, "creating config template")
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, scanerrors.Wrap(err, "parsing config.toml")
	}

	applyEnvOverrides(v, &cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("trigger.equal_weight_index", cfg.Trigger.EqualWeightIndex)
	v.SetDefault("trigger.cap_weight_index", cfg.Trigger.CapWeightIndex)
	v.SetDefault("trigger.rsp_spy_threshold", cfg.Trigger.Threshold)
	v.SetDefault("trigger.lookback_days", cfg.Trigger.LookbackDays)
	v.SetDefault("fundamentals.max_correlation", cfg.Fundamentals.MaxCorrelation)
	v.SetDefault("risk.portfolio_size", cfg.Risk.PortfolioSize)
	v.SetDefault("risk.min_expected_value", cfg.Risk.MinExpectedValue)
	v.SetDefault("risk.max_position_pct", cfg.Risk.MaxPositionPct)
	v.SetDefault("risk.per_trade_risk_pct", cfg.Risk.PerTradeRiskPct)
	v.SetDefault("risk.stop_loss_multiple", cfg.Risk.StopLossMultiple)
	v.SetDefault("risk.max_positions", cfg.Risk.MaxPositions)
	v.SetDefault("risk.max_sector_positions", cfg.Risk.MaxSectorPositions)
	v.SetDefault("scan.scan_mode", string(cfg.Scan.Mode))
	v.SetDefault("scan.spread_type", string(cfg.Scan.SpreadType))
	v.SetDefault("scan.concurrency", cfg.Scan.Concurrency)
	v.SetDefault("data.cache_ttl_minutes", cfg.Data.CacheTTLMinutes)
	v.SetDefault("data.request_timeout_seconds", cfg.Data.RequestTimeoutSeconds)
	v.SetDefault("data.rate_limit_per_hour", cfg.Data.RateLimitPerHour)
	v.SetDefault("data.retry_max_attempts", cfg.Data.RetryMaxAttempts)
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if raw := os.Getenv("SCANNER_TRIGGER_THRESHOLD"); raw != "" {
		v.Set("trigger.rsp_spy_threshold", raw)
		cfg.Trigger.Threshold = v.GetFloat64("trigger.rsp_spy_threshold")
	}
	if raw := os.Getenv("SCANNER_SPREAD_TYPE"); raw != "" {
		cfg.Scan.SpreadType = SpreadType(raw)
	}
	if raw := os.Getenv("SCANNER_SCAN_MODE"); raw != "" {
		cfg.Scan.Mode = ScanMode(raw)
	}
}

// Validate range-checks every recognized option, failing fast before a
// cycle starts.
func (c Config) Validate() error {
	if c.Trigger.Threshold <= 0 || c.Trigger.Threshold > 100 {
		return scanerrors.NewConfigError("rsp_spy_threshold", c.Trigger.Threshold, "must be in (0, 100]")
	}
	if c.Trigger.LookbackDays < 2 {
		return scanerrors.NewConfigError("lookback_days", c.Trigger.LookbackDays, "must be at least 2")
	}
	if c.Fundamentals.MaxCorrelation < -1 || c.Fundamentals.MaxCorrelation > 1 {
		return scanerrors.NewConfigError("max_correlation", c.Fundamentals.MaxCorrelation, "must be in [-1, 1]")
	}
	if c.Risk.PortfolioSize <= 0 {
		return scanerrors.NewConfigError("portfolio_size", c.Risk.PortfolioSize, "must be positive")
	}
	if c.Risk.MinExpectedValue < 0 || c.Risk.MinExpectedValue > 1 {
		return scanerrors.NewConfigError("min_expected_value", c.Risk.MinExpectedValue, "must be a fraction in [0, 1]")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 10 {
		return scanerrors.NewConfigError("max_position_pct", c.Risk.MaxPositionPct, "must be in (0, 10]")
	}
	if c.Risk.PerTradeRiskPct <= 0 || c.Risk.PerTradeRiskPct > 10 {
		return scanerrors.NewConfigError("per_trade_risk_pct", c.Risk.PerTradeRiskPct, "must be in (0, 10]")
	}
	if c.Risk.StopLossMultiple <= 0 {
		return scanerrors.NewConfigError("stop_loss_multiple", c.Risk.StopLossMultiple, "must be positive")
	}
	if c.Risk.MaxPositions < 1 {
		return scanerrors.NewConfigError("max_positions", c.Risk.MaxPositions, "must be at least 1")
	}
	if c.Risk.MaxSectorPositions < 1 {
		return scanerrors.NewConfigError("max_sector_positions", c.Risk.MaxSectorPositions, "must be at least 1")
	}
	switch c.Scan.Mode {
	case ModeQuick, ModeFull, ModeCustom:
	default:
		return scanerrors.NewConfigError("scan_mode", c.Scan.Mode, "must be quick, full or custom")
	}
	switch c.Scan.SpreadType {
	case SpreadTypePut, SpreadTypeCall, SpreadTypeBoth:
	default:
		return scanerrors.NewConfigError("spread_type", c.Scan.SpreadType, "must be put, call or both")
	}
	if c.Scan.Concurrency < 1 {
		return scanerrors.NewConfigError("concurrency", c.Scan.Concurrency, "must be at least 1")
	}
	if c.Data.CacheTTLMinutes <= 0 {
		return scanerrors.NewConfigError("cache_ttl_minutes", c.Data.CacheTTLMinutes, "must be positive")
	}
	if c.Data.RequestTimeoutSeconds <= 0 {
		return scanerrors.NewConfigError("request_timeout_seconds", c.Data.RequestTimeoutSeconds, "must be positive")
	}
	if c.Data.RateLimitPerHour < 0 {
		return scanerrors.NewConfigError("rate_limit_per_hour", c.Data.RateLimitPerHour, "must be non-negative")
	}
	if c.Data.RetryMaxAttempts < 1 {
		return scanerrors.NewConfigError("retry_max_attempts", c.Data.RetryMaxAttempts, "must be at least 1")
	}
	return nil
}
