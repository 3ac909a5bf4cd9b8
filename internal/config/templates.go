package config

import (
	"os"
	"path/filepath"
)

const configTemplate = `# spread-scanner configuration

[trigger]
equal_weight_index = "RSP"
cap_weight_index = "SPY"
# Strategy goes live when the equal-weight index has outperformed the
# cap-weight index by at least this many percentage points.
rsp_spy_threshold = 8.0
lookback_days = 252

[fundamentals]
max_correlation = -0.3
# Empty list disables the sector screen.
allowed_sectors = []

[risk]
portfolio_size = 100000.0
min_expected_value = 0.20
max_position_pct = 2.5
per_trade_risk_pct = 2.5
stop_loss_multiple = 2.0
max_positions = 15
max_sector_positions = 3

[scan]
scan_mode = "full"       # quick | full | custom
spread_type = "both"     # put | call | both
concurrency = 4
universe = []

[data]
cache_ttl_minutes = 15
request_timeout_seconds = 10
rate_limit_per_hour = 2000
retry_max_attempts = 3
`

// writeTemplate creates a default config.toml on first run.
func writeTemplate(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(configTemplate), 0644)
}
