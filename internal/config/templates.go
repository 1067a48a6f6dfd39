package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# btc-intel configuration
# Every key can be overridden with BTCINTEL_<SECTION>_<KEY>, e.g. BTCINTEL_DATA_SYMBOL.

[data]
# SQLite database holding candles, levels and signals
db_path = "~/.config/btc-intel/btcintel.db"
# Instrument symbol the candles are stored under
symbol = "BTCUSDT"
# Series levels, volume zones and role flips are built from: 1H, 4H, 1D, 1W
base_timeframe = "1D"
# Latest candles loaded per timeframe for a scan
bars = 500

[levels]
# Two observations within this percent are the same level
merge_tolerance_pct = 0.3
# Max distance for a level to count as Fibonacci-coincident
fib_tolerance_pct = 0.5
# Max distance from a zone's running mean
zone_tolerance_pct = 0.5
# Max distance from a Fibonacci confluence anchor
confluence_tolerance_pct = 0.5
# Default minimum strength for "levels list"
min_strength = 0

[backtest]
# Bar series replayed against stored signals
bar_timeframe = "1H"
# Max pending signals evaluated per run
limit = 200

[logging]
# debug, info, warn, error
level = "info"
# console (human readable) or json (one object per line on stderr)
format = "console"
# Rotating log file
file = true
file_path = "~/.config/btc-intel/logs/btcintel.log"
max_size_mb = 50
max_backups = 5
max_age_days = 30

[metrics]
# Write Prometheus metrics to a textfile after each command
enabled = false
textfile = "~/.config/btc-intel/metrics/btcintel.prom"

[ui]
# Enable colored output
color_enabled = true
`

// Template returns the commented default config file.
func Template() string {
	return configTemplate
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
