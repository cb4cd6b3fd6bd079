package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names. A .env file in the working directory is
// loaded first so local setups do not have to export anything.
const (
	envBaseURL          = "CATCHDEX_API_BASE_URL"
	envRequestTimeout   = "CATCHDEX_REQUEST_TIMEOUT"
	envProbeTimeout     = "CATCHDEX_PROBE_TIMEOUT"
	envProbeInterval    = "CATCHDEX_PROBE_INTERVAL"
	envSyncInterval     = "CATCHDEX_SYNC_INTERVAL"
	envCatalogStaleness = "CATCHDEX_CATALOG_STALENESS"
	envPageSize         = "CATCHDEX_PAGE_SIZE"
	envDBPath           = "CATCHDEX_DB_PATH"
	envLogLevel         = "CATCHDEX_LOG_LEVEL"
)

// parseEnv overlays Config with environment values. Unset or malformed
// values leave the current value untouched.
func parseEnv(cfg *Config) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	if v := os.Getenv(envBaseURL); v != "" {
		cfg.APIBaseURL = v
	}
	envDuration(envRequestTimeout, &cfg.RequestTimeout)
	envDuration(envProbeTimeout, &cfg.ProbeTimeout)
	envDuration(envProbeInterval, &cfg.ProbeInterval)
	envDuration(envSyncInterval, &cfg.SyncInterval)
	envDuration(envCatalogStaleness, &cfg.CatalogStaleness)
	if v := os.Getenv(envPageSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PageSize = n
		}
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}
}

func envDuration(name string, dst *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
