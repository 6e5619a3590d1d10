// Package config loads and resolves moneto configuration from the
// defaults → config file → environment → CLI flag override chain.
package config

import (
	"fmt"
	"time"
)

// Default values applied before the config file is read.
const (
	defaultLogLevel   = "info"
	defaultLocale     = "fr-FR"
	defaultCurrency   = "EUR"
	defaultDebounceMs = 2000
)

// Config is the on-disk TOML configuration.
type Config struct {
	// BackendURL is the base URL of the hosted backend
	// (e.g. "https://xyz.supabase.co"). Empty means cloud sync is off.
	BackendURL string `toml:"backend_url"`
	// AnonKey is the public API key sent with every backend request.
	AnonKey string `toml:"anon_key"`
	// StateDir holds the plan database and session file.
	// Defaults to the platform state directory.
	StateDir string `toml:"state_dir"`

	LogLevel string `toml:"log_level"`
	// LogFile, when set, mirrors sync logs to a rotating file.
	LogFile string `toml:"log_file"`

	Locale   string `toml:"locale"`
	Currency string `toml:"currency"`

	// DebounceMs is the trailing window for edit-triggered auto-sync.
	DebounceMs int `toml:"debounce_ms"`
	// Realtime enables the websocket change feed in watch mode.
	Realtime bool `toml:"realtime"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:   defaultLogLevel,
		Locale:     defaultLocale,
		Currency:   defaultCurrency,
		DebounceMs: defaultDebounceMs,
		Realtime:   true,
	}
}

// CloudConfigured reports whether the remote backend is reachable in
// principle. Sync operations short-circuit when this is false.
func (c *Config) CloudConfigured() bool {
	return c.BackendURL != "" && c.AnonKey != ""
}

// DebounceWindow returns the debounce window as a duration.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Validate checks the configuration for values that would misbehave later.
func Validate(c *Config) error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q (debug, info, warn, error)", c.LogLevel)
	}

	if c.DebounceMs < 0 {
		return fmt.Errorf("config: debounce_ms must be non-negative, got %d", c.DebounceMs)
	}

	return nil
}
