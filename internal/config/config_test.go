package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "btc-intel/internal/errors"
	"btc-intel/internal/models"
)

func TestLoad_CreatesTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Data.Symbol)
	assert.Equal(t, models.TF1D, cfg.Data.Timeframe())
	assert.Equal(t, 500, cfg.Data.Bars)
	assert.Equal(t, 0.3, cfg.Levels.MergeTolerancePct)
	assert.Equal(t, models.TF1H, cfg.Backtest.Timeframe())
	assert.Equal(t, 200, cfg.Backtest.Limit)
	assert.False(t, cfg.Metrics.Enabled)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "btc-intel", "btcintel.db"), cfg.Data.DBPath)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[data]
db_path = "/tmp/other.db"
symbol = "ETHUSDT"
base_timeframe = "4H"

[levels]
zone_tolerance_pct = 0.8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))
	t.Setenv("BTCINTEL_DATA_BARS", "750")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Data.DBPath)
	assert.Equal(t, "ETHUSDT", cfg.Data.Symbol)
	assert.Equal(t, models.TF4H, cfg.Data.Timeframe())
	assert.Equal(t, 750, cfg.Data.Bars)
	assert.Equal(t, 0.8, cfg.Levels.ZoneTolerancePct)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.5, cfg.Levels.ConfluenceTolerancePct)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	content := `
[data]
base_timeframe = "2H"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigInvalid))
	assert.Contains(t, err.Error(), "BaseTimeframe")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty symbol", func(c *Config) { c.Data.Symbol = "" }, false},
		{"too few bars", func(c *Config) { c.Data.Bars = 10 }, false},
		{"zero tolerance", func(c *Config) { c.Levels.MergeTolerancePct = 0 }, false},
		{"strength above max", func(c *Config) { c.Levels.MinStrength = 21 }, false},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, false},
		{"unknown log format", func(c *Config) { c.Logging.Format = "logfmt" }, false},
		{"json log format", func(c *Config) { c.Logging.Format = "json" }, true},
		{"metrics without textfile", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Textfile = "" }, false},
		{"metrics with textfile", func(c *Config) { c.Metrics.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			}
		})
	}
}

func TestLoggingConfig_LogConfig(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", File: true, FilePath: "/tmp/x.log", MaxSizeMB: 10, MaxBackups: 2, MaxAgeDays: 7}.LogConfig()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "json", lc.Format)
	assert.True(t, lc.Console)
	assert.Equal(t, 10, lc.MaxSize)
	assert.Equal(t, 7, lc.MaxAge)
}
