package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, 10_000.0, cfg.Account.StartingBalance)
	assert.Equal(t, "./papertrade.db", cfg.Ledger.DBPath)
	assert.NoError(t, cfg.Validate())

	interval, err := cfg.Alerts.ParseInterval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, interval)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "zero balance",
			mutate: func(c *Config) { c.Account.StartingBalance = 0 },
			errMsg: "account.starting_balance must be positive",
		},
		{
			name:   "missing db path",
			mutate: func(c *Config) { c.Ledger.DBPath = "" },
			errMsg: "ledger.db_path is required",
		},
		{
			name:   "bad interval",
			mutate: func(c *Config) { c.Alerts.Interval = "soon" },
			errMsg: "alerts.interval must be a positive duration",
		},
		{
			name:   "negative interval",
			mutate: func(c *Config) { c.Alerts.Interval = "-5s" },
			errMsg: "alerts.interval must be a positive duration",
		},
		{
			name:   "bad lookup timeout",
			mutate: func(c *Config) { c.Alerts.LookupTimeout = "0" },
			errMsg: "alerts.lookup_timeout must be a positive duration",
		},
		{
			name:   "bad market timeout",
			mutate: func(c *Config) { c.Market.Timeout = "" },
			errMsg: "market.timeout must be a positive duration",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Log.Level = "verbose" },
			errMsg: "log.level must be debug, info, warn, or error",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account:
  starting_balance: 25000
ledger:
  db_path: /tmp/test.db
alerts:
  interval: 15s
  lookup_timeout: 3s
market:
  timeout: 5s
notify:
  webhook_url: http://localhost:9000/hook
log:
  level: debug
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25_000.0, cfg.Account.StartingBalance)
	assert.Equal(t, "/tmp/test.db", cfg.Ledger.DBPath)
	assert.Equal(t, "15s", cfg.Alerts.Interval)
	assert.Equal(t, "http://localhost:9000/hook", cfg.Notify.WebhookURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromFilePartialUsesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger:\n  db_path: ./x.db\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "./x.db", cfg.Ledger.DBPath)
	assert.Equal(t, "30s", cfg.Alerts.Interval)
	assert.Equal(t, 10_000.0, cfg.Account.StartingBalance)
}

func TestLoadFromFileInvalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("alerts:\n  interval: nope\n"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
