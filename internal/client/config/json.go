package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avdeyev/catchdex/internal/flagx"
	"github.com/avdeyev/catchdex/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds.
type JsonConfig struct {
	APIBaseURL       *string         `json:"api_base_url"`
	RequestTimeout   *timex.Duration `json:"request_timeout"`
	ProbeTimeout     *timex.Duration `json:"probe_timeout"`
	ProbeInterval    *timex.Duration `json:"probe_interval"`
	SyncInterval     *timex.Duration `json:"sync_interval"`
	CatalogStaleness *timex.Duration `json:"catalog_staleness"`
	PageSize         *int            `json:"page_size"`
	DBPath           *string         `json:"db_path"`
	LogLevel         *string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Absent keys leave the current value untouched; read or
// unmarshal errors panic (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != nil {
		cfg.APIBaseURL = *jc.APIBaseURL
	}
	jsonDuration(jc.RequestTimeout, &cfg.RequestTimeout)
	jsonDuration(jc.ProbeTimeout, &cfg.ProbeTimeout)
	jsonDuration(jc.ProbeInterval, &cfg.ProbeInterval)
	jsonDuration(jc.SyncInterval, &cfg.SyncInterval)
	jsonDuration(jc.CatalogStaleness, &cfg.CatalogStaleness)
	if jc.PageSize != nil {
		cfg.PageSize = *jc.PageSize
	}
	if jc.DBPath != nil {
		cfg.DBPath = *jc.DBPath
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
}

func jsonDuration(src *timex.Duration, dst *time.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
