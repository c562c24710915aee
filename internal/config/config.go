// Package config provides configuration management for the recorder.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultCloseHour is the venue close used when market.close_hour is unset (4pm ET)
	defaultCloseHour = 16
	// defaultTimezone is the trading venue zone used when market.timezone is unset
	defaultTimezone = "America/New_York"
	// defaultDashboardPort is used when dashboard.port is unset
	defaultDashboardPort = 8080
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Market      MarketConfig      `yaml:"market"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Calendar    CalendarConfig    `yaml:"calendar"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// GatewayConfig defines execution gateway API settings.
type GatewayConfig struct {
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"api_key"`
	APIEndpoint string `yaml:"api_endpoint"`
	AccountID   string `yaml:"account_id"`
}

// MarketConfig defines the trading venue's clock.
type MarketConfig struct {
	Timezone string `yaml:"timezone"` // e.g., "America/New_York"
	// CloseHour is the venue close in whole hours; the expiration/called-away
	// pass only runs when the recorder is invoked at or after this hour.
	CloseHour int `yaml:"close_hour"`
}

// LedgerConfig defines ledger store settings.
type LedgerConfig struct {
	Path string `yaml:"path"` // SQLite database file
	// SnapshotDir holds the per-day raw fill snapshots used by recovery runs.
	SnapshotDir string `yaml:"snapshot_dir"`
}

// CalendarConfig defines the trading-holiday calendar files.
type CalendarConfig struct {
	HolidaysFile string `yaml:"holidays_file"`
	HalfDaysFile string `yaml:"half_days_file"`
	// TreatHalfDaysAsClosed skips recording on early-close days as well.
	TreatHalfDaysAsClosed bool `yaml:"treat_half_days_as_closed"`
}

// DashboardConfig defines the read-only ledger viewer settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
	// AuthToken, when set, is required on every request except /health.
	AuthToken string `yaml:"auth_token"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	// Environment validation
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}

	// Gateway validation
	if c.Gateway.APIKey == "" {
		return fmt.Errorf("gateway.api_key is required")
	}
	if c.Gateway.AccountID == "" {
		return fmt.Errorf("gateway.account_id is required")
	}

	// Ledger validation
	if c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required")
	}
	if c.Ledger.SnapshotDir == "" {
		return fmt.Errorf("ledger.snapshot_dir is required")
	}

	// Calendar validation
	if c.Calendar.HolidaysFile == "" {
		return fmt.Errorf("calendar.holidays_file is required")
	}

	// Market validation
	c.normalizeMarketConfig()
	if c.Market.CloseHour < 0 || c.Market.CloseHour > 23 {
		return fmt.Errorf("market.close_hour must be between 0 and 23")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port must be between 0 and 65535")
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		// Fallback for minimal containers; Location() mirrors this
		if c.Market.Timezone != defaultTimezone {
			return fmt.Errorf("market.timezone invalid: %w", err)
		}
	}

	return nil
}

// IsPaperTrading returns true if the recorder is configured for paper trading.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// Location returns the trading venue's time zone.
func (c *Config) Location() *time.Location {
	tz := c.Market.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		// Try fallback to America/New_York
		if fallbackLoc, err2 := time.LoadLocation(defaultTimezone); err2 == nil {
			loc = fallbackLoc
		} else {
			// Final fallback to DST-agnostic FixedZone
			loc = time.FixedZone("ET", -5*60*60)
		}
	}
	return loc
}

// normalizeMarketConfig sets default values for market configuration
func (c *Config) normalizeMarketConfig() {
	if c.Market.Timezone == "" {
		c.Market.Timezone = defaultTimezone
	}
	if c.Market.CloseHour == 0 {
		c.Market.CloseHour = defaultCloseHour
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = defaultDashboardPort
	}
}
