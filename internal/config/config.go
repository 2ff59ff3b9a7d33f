// Package config provides configuration management for the options scoring engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "optscore/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Engine   EngineConfig                    `mapstructure:"engine"`
	Risk     RiskConfig                      `mapstructure:"risk"`
	Provider ProviderConfig                  `mapstructure:"provider"`
	Cache    CacheConfig                     `mapstructure:"cache"`
	Log      LogConfig                       `mapstructure:"log"`
	Metrics  MetricsConfig                   `mapstructure:"metrics"`
	Markets  map[string]MarketOverrideConfig `mapstructure:"markets"`
}

// EngineConfig holds analysis defaults.
type EngineConfig struct {
	DefaultStrategy string `mapstructure:"default_strategy"` // sell_put, sell_call, buy_put, buy_call, all
	ProfileTopN     int    `mapstructure:"profile_top_n"`
	HistoryDays     int    `mapstructure:"history_days"`
}

// RiskConfig holds position-sizing defaults.
type RiskConfig struct {
	Tolerance      string  `mapstructure:"tolerance"` // conservative, moderate, aggressive
	PortfolioValue float64 `mapstructure:"portfolio_value"`
}

// ProviderConfig selects and tunes the chain data source.
type ProviderConfig struct {
	Kind             string        `mapstructure:"kind"` // file, sqlite
	DataDir          string        `mapstructure:"data_dir"`
	SQLitePath       string        `mapstructure:"sqlite_path"`
	RequestsPerSec   float64       `mapstructure:"requests_per_sec"`
	Burst            int           `mapstructure:"burst"`
	BreakerFailures  uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	RetryInitialWait time.Duration `mapstructure:"retry_initial_wait"`
}

// CacheConfig configures the optional Redis snapshot cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Addr    string        `mapstructure:"addr"`
	DB      int           `mapstructure:"db"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// MarketOverrideConfig overrides registry parameters for one market.
// Zero values leave the built-in parameter unchanged.
type MarketOverrideConfig struct {
	RiskFreeRate    float64            `mapstructure:"risk_free_rate"`
	MarginRate      float64            `mapstructure:"margin_rate"`
	MinVolume       int64              `mapstructure:"min_volume"`
	MinOpenInterest int64              `mapstructure:"min_open_interest"`
	MaxSpreadPct    float64            `mapstructure:"max_spread_pct"`
	Whitelist       []string           `mapstructure:"whitelist"`
	Multipliers     map[string]float64 `mapstructure:"multipliers"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/optscore"
	}
	return filepath.Join(home, ".config", "optscore")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A .env next to the config or in the working directory is optional.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))
	_ = godotenv.Load()

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)
	fillPaths(cfg, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("engine.default_strategy", "all")
	v.SetDefault("engine.profile_top_n", 5)
	v.SetDefault("engine.history_days", 260)

	v.SetDefault("risk.tolerance", "moderate")
	v.SetDefault("risk.portfolio_value", 100000.0)

	v.SetDefault("provider.kind", "file")
	v.SetDefault("provider.data_dir", filepath.Join(configDir, "snapshots"))
	v.SetDefault("provider.sqlite_path", filepath.Join(configDir, "snapshots.db"))
	v.SetDefault("provider.requests_per_sec", 5.0)
	v.SetDefault("provider.burst", 5)
	v.SetDefault("provider.breaker_failures", 5)
	v.SetDefault("provider.breaker_timeout", 30*time.Second)
	v.SetDefault("provider.retry_attempts", 3)
	v.SetDefault("provider.retry_initial_wait", 200*time.Millisecond)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.prefix", "optscore:snapshot:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", false)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "optscore.log"))
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9108")
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template and continue on defaults
			if err := createTemplateConfig(configDir, name); err != nil {
				return err
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

// fillPaths resolves empty paths, which the template leaves blank, under configDir.
func fillPaths(cfg *Config, configDir string) {
	if cfg.Provider.DataDir == "" {
		cfg.Provider.DataDir = filepath.Join(configDir, "snapshots")
	}
	if cfg.Provider.SQLitePath == "" {
		cfg.Provider.SQLitePath = filepath.Join(configDir, "snapshots.db")
	}
	if cfg.Log.FilePath == "" {
		cfg.Log.FilePath = filepath.Join(configDir, "logs", "optscore.log")
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPTSCORE_PROVIDER"); v != "" {
		cfg.Provider.Kind = v
	}
	if v := os.Getenv("OPTSCORE_DATA_DIR"); v != "" {
		cfg.Provider.DataDir = v
	}
	if v := os.Getenv("OPTSCORE_SQLITE_PATH"); v != "" {
		cfg.Provider.SQLitePath = v
	}
	if v := os.Getenv("OPTSCORE_REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("OPTSCORE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("OPTSCORE_RISK_TOLERANCE"); v != "" {
		cfg.Risk.Tolerance = strings.ToLower(v)
	}
	if v := os.Getenv("OPTSCORE_PORTFOLIO_VALUE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.PortfolioValue = f
		}
	}
}

// Validate reports the first invalid setting. Errors wrap ErrConfigInvalid.
func (c *Config) Validate() error {
	switch c.Engine.DefaultStrategy {
	case "", "sell_put", "sell_call", "buy_put", "buy_call", "all":
	default:
		return invalid("invalid default_strategy: %s", c.Engine.DefaultStrategy)
	}

	switch c.Provider.Kind {
	case "", "file", "sqlite":
	default:
		return invalid("invalid provider kind: %s (must be 'file' or 'sqlite')", c.Provider.Kind)
	}

	switch c.Risk.Tolerance {
	case "", "conservative", "moderate", "aggressive":
	default:
		return invalid("invalid risk tolerance: %s", c.Risk.Tolerance)
	}

	if c.Risk.PortfolioValue < 0 {
		return invalid("portfolio_value must be non-negative")
	}
	if c.Engine.ProfileTopN < 0 {
		return invalid("profile_top_n must be non-negative")
	}
	if c.Provider.RequestsPerSec < 0 {
		return invalid("requests_per_sec must be non-negative")
	}

	for code, m := range c.Markets {
		if m.RiskFreeRate < 0 || m.RiskFreeRate > 1 {
			return invalid("markets.%s.risk_free_rate must be between 0 and 1", code)
		}
		if m.MarginRate < 0 || m.MarginRate > 1 {
			return invalid("markets.%s.margin_rate must be between 0 and 1", code)
		}
		if m.MaxSpreadPct < 0 {
			return invalid("markets.%s.max_spread_pct must be non-negative", code)
		}
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return apperrors.Wrapf(apperrors.ErrConfigInvalid, format, args...)
}
