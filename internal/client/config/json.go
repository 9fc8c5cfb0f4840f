package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/flagx"
	"github.com/dmitrijs2005/productkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so they can be written as "3s" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	SyncDebounce        timex.Duration `json:"sync_debounce"`
	DatabasePath        string         `json:"database_path"`
	CacheDir            string         `json:"cache_dir"`
	LogFile             string         `json:"log_file"`
	LogLevel            string         `json:"log_level"`
	PerPage             int            `json:"per_page"`
	PullProducts        *bool          `json:"pull_products"`
	ActorRole           string         `json:"actor_role"`
	ActorID             string         `json:"actor_id"`
}

// parseJson overlays cfg with the values present in the JSON file named by
// -c or -config. Keys missing from the file keep their current value.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.CacheDir, jc.CacheDir)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.ActorID, jc.ActorID)

	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.SyncDebounce.Duration > 0 {
		cfg.SyncDebounce = jc.SyncDebounce.Duration
	}
	if jc.PerPage > 0 {
		cfg.PerPage = jc.PerPage
	}
	if jc.PullProducts != nil {
		cfg.PullProducts = *jc.PullProducts
	}
	if jc.ActorRole != "" {
		cfg.ActorRole = models.Role(jc.ActorRole)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
