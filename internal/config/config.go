// Package config provides configuration management for btc-intel.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "btc-intel/internal/errors"
	"btc-intel/internal/logging"
	"btc-intel/internal/models"
)

// EnvPrefix prefixes environment overrides, e.g. BTCINTEL_DATA_SYMBOL.
const EnvPrefix = "BTCINTEL"

// Config holds all application configuration.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Levels   LevelsConfig   `mapstructure:"levels"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	UI       UIConfig       `mapstructure:"ui"`
}

// DataConfig holds the candle store settings.
type DataConfig struct {
	DBPath        string `mapstructure:"db_path" validate:"required"`
	Symbol        string `mapstructure:"symbol" validate:"required,alphanum"`
	BaseTimeframe string `mapstructure:"base_timeframe" validate:"oneof=1H 4H 1D 1W"`
	Bars          int    `mapstructure:"bars" validate:"gte=50,lte=10000"`
}

// LevelsConfig holds the proximity tolerances, in percent.
type LevelsConfig struct {
	MergeTolerancePct      float64 `mapstructure:"merge_tolerance_pct" validate:"gt=0,lte=5"`
	FibTolerancePct        float64 `mapstructure:"fib_tolerance_pct" validate:"gt=0,lte=5"`
	ZoneTolerancePct       float64 `mapstructure:"zone_tolerance_pct" validate:"gt=0,lte=5"`
	ConfluenceTolerancePct float64 `mapstructure:"confluence_tolerance_pct" validate:"gt=0,lte=5"`
	MinStrength            int     `mapstructure:"min_strength" validate:"gte=0,lte=20"`
}

// BacktestConfig holds the signal evaluation settings.
type BacktestConfig struct {
	BarTimeframe string `mapstructure:"bar_timeframe" validate:"oneof=1H 4H 1D 1W"`
	Limit        int    `mapstructure:"limit" validate:"gt=0"`
}

// LoggingConfig holds the log sink settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=console json"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path" validate:"required_if=File true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// MetricsConfig holds the Prometheus textfile settings.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile" validate:"required_if=Enabled true"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/btc-intel"
	}
	return filepath.Join(home, ".config", "btc-intel")
}

// ConfigPath returns the config file path inside configDir.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template first.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Data.DBPath = expandHome(cfg.Data.DBPath)
	cfg.Logging.FilePath = expandHome(cfg.Logging.FilePath)
	cfg.Metrics.Textfile = expandHome(cfg.Metrics.Textfile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file overrides anything.
func Default() *Config {
	configDir := DefaultConfigDir()
	v := viper.New()
	setDefaults(v, configDir)

	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("data.db_path", filepath.Join(configDir, "btcintel.db"))
	v.SetDefault("data.symbol", "BTCUSDT")
	v.SetDefault("data.base_timeframe", string(models.TF1D))
	v.SetDefault("data.bars", 500)

	v.SetDefault("levels.merge_tolerance_pct", 0.3)
	v.SetDefault("levels.fib_tolerance_pct", 0.5)
	v.SetDefault("levels.zone_tolerance_pct", 0.5)
	v.SetDefault("levels.confluence_tolerance_pct", 0.5)
	v.SetDefault("levels.min_strength", 0)

	v.SetDefault("backtest.bar_timeframe", string(models.TF1H))
	v.SetDefault("backtest.limit", 200)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "btcintel.log"))
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", filepath.Join(configDir, "metrics", "btcintel.prom"))

	v.SetDefault("ui.color_enabled", true)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return fmt.Errorf("%w: %w", apperrors.ErrConfigInvalid,
				apperrors.NewValidationError(fe.Namespace(), fe.Value(), "failed "+fe.Tag()))
		}
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}
	return nil
}

// Timeframe returns the base timeframe levels are built from.
func (d DataConfig) Timeframe() models.Timeframe {
	return models.Timeframe(d.BaseTimeframe)
}

// Timeframe returns the bar series replayed against signals.
func (b BacktestConfig) Timeframe() models.Timeframe {
	return models.Timeframe(b.BarTimeframe)
}

// LogConfig converts the logging section for the logging package.
func (l LoggingConfig) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      l.Level,
		Format:     l.Format,
		Console:    true,
		File:       l.File,
		FilePath:   l.FilePath,
		MaxSize:    l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAgeDays,
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
