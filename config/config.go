// Package config loads and validates the service configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Ledger  LedgerConfig  `json:"ledger" yaml:"ledger"`
	Alerts  AlertsConfig  `json:"alerts" yaml:"alerts"`
	Market  MarketConfig  `json:"market" yaml:"market"`
	Notify  NotifyConfig  `json:"notify" yaml:"notify"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// AccountConfig controls account creation.
type AccountConfig struct {
	// StartingBalance is the cash every new account begins with.
	StartingBalance float64 `json:"starting_balance" yaml:"starting_balance"`
}

// LedgerConfig locates the persistent store.
type LedgerConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// AlertsConfig tunes the matching loop and its management endpoint.
type AlertsConfig struct {
	Interval      string `json:"interval" yaml:"interval"`             // e.g. "30s"
	LookupTimeout string `json:"lookup_timeout" yaml:"lookup_timeout"` // e.g. "10s"

	// ListenAddr is where serve exposes the alert management API. Empty
	// disables the endpoint.
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// MarketConfig points at the price source.
type MarketConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Timeout string `json:"timeout" yaml:"timeout"`
}

// NotifyConfig selects the notification sink. An empty webhook URL falls
// back to log-only delivery.
type NotifyConfig struct {
	WebhookURL string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug|info|warn|error
}

// ParseInterval returns the alert scan period.
func (a AlertsConfig) ParseInterval() (time.Duration, error) {
	return time.ParseDuration(a.Interval)
}

// ParseLookupTimeout returns the per-symbol price lookup bound.
func (a AlertsConfig) ParseLookupTimeout() (time.Duration, error) {
	return time.ParseDuration(a.LookupTimeout)
}

// ParseTimeout returns the market HTTP timeout.
func (m MarketConfig) ParseTimeout() (time.Duration, error) {
	return time.ParseDuration(m.Timeout)
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Account.StartingBalance <= 0 {
		return fmt.Errorf("account.starting_balance must be positive")
	}
	if c.Ledger.DBPath == "" {
		return fmt.Errorf("ledger.db_path is required")
	}
	if d, err := c.Alerts.ParseInterval(); err != nil || d <= 0 {
		return fmt.Errorf("alerts.interval must be a positive duration")
	}
	if d, err := c.Alerts.ParseLookupTimeout(); err != nil || d <= 0 {
		return fmt.Errorf("alerts.lookup_timeout must be a positive duration")
	}
	if d, err := c.Market.ParseTimeout(); err != nil || d <= 0 {
		return fmt.Errorf("market.timeout must be a positive duration")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{StartingBalance: 10_000},
		Ledger:  LedgerConfig{DBPath: "./papertrade.db"},
		Alerts: AlertsConfig{
			Interval:      "30s",
			LookupTimeout: "10s",
			ListenAddr:    "127.0.0.1:8787",
		},
		Market: MarketConfig{Timeout: "10s"},
		Log:    LogConfig{Level: "info"},
	}
}
