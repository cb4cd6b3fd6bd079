// Package config loads runtime configuration for the CatchDex CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables, optionally seeded from a .env file.
//  3. Optional JSON file selected via -c or -config.
//  4. Command-line flags, which override everything.
package config

import "time"

// Config holds runtime settings for the client.
type Config struct {
	// APIBaseURL is the server's HTTP base, e.g. "http://127.0.0.1:8080".
	APIBaseURL string

	// RequestTimeout bounds general gateway calls.
	RequestTimeout time.Duration

	// ProbeTimeout bounds a single health probe.
	ProbeTimeout time.Duration

	// ProbeInterval is how often reachability is probed while the device
	// reports online.
	ProbeInterval time.Duration

	// SyncInterval is how often the pending-action queue is drained while
	// reachable.
	SyncInterval time.Duration

	// CatalogStaleness is how long the cached catalog is trusted before a
	// refresh is attempted.
	CatalogStaleness time.Duration

	// PageSize is the default page size for catalog and owned listings.
	PageSize int

	// DBPath is the sqlite file location (":memory:" for throwaway runs).
	DBPath string

	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
	c.ProbeTimeout = 5 * time.Second
	c.ProbeInterval = 30 * time.Second
	c.SyncInterval = 30 * time.Second
	c.CatalogStaleness = 24 * time.Hour
	c.PageSize = 50
	c.DBPath = "catchdex.db"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment, a JSON file (if present) and command-line flags.
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
