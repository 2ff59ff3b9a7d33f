package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# optscore configuration

[engine]
# Strategy analyzed when none is given: sell_put, sell_call, buy_put, buy_call, all
default_strategy = "all"
# Number of top recommendations per strategy that receive a risk/return profile
profile_top_n = 5
# Days of daily closes requested for realized volatility and enrichment
history_days = 260

[risk]
# Position sizing tier: conservative, moderate, aggressive
tolerance = "moderate"
# Portfolio value used by the size command when --portfolio is not given
portfolio_value = 100000.0

[provider]
# Snapshot source: "file" (JSON/YAML files in data_dir) or "sqlite"
kind = "file"
data_dir = ""
sqlite_path = ""
# Outbound call guard
requests_per_sec = 5.0
burst = 5
breaker_failures = 5
breaker_timeout = "30s"
retry_attempts = 3
retry_initial_wait = "200ms"

[cache]
# Read-through Redis cache for snapshots
enabled = false
addr = "localhost:6379"
db = 0
ttl = "5m"
prefix = "optscore:snapshot:"

[log]
level = "info"
# JSON lines on stderr instead of the colored console format
json = false
file = false
max_size = 100
max_backups = 7
max_age = 30

[metrics]
# Serve Prometheus metrics on addr while a command runs
enabled = false
addr = ":9108"

# Per-market overrides. Zero values keep the built-in parameters.
# [markets.US]
# risk_free_rate = 0.045
# min_volume = 10
# min_open_interest = 100
# max_spread_pct = 0.10
#
# [markets.COMMODITY]
# margin_rate = 0.10
# whitelist = ["AU", "CU"]
# [markets.COMMODITY.multipliers]
# AU = 1000
`

// createTemplateConfig writes a commented template so the user has something
// to edit. Loading continues on defaults either way.
func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
