package config

import (
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
)

// Config holds runtime settings for the catalog CLI.
//
// Durations are time.Duration values; the flag layer takes whole seconds
// for intervals and timeouts and milliseconds for the sync debounce.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	SyncDebounce        time.Duration

	DatabasePath string
	CacheDir     string
	LogFile      string
	LogLevel     string

	PerPage      int
	PullProducts bool

	ActorRole models.Role
	ActorID   string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.SyncDebounce = 500 * time.Millisecond
	c.DatabasePath = "catalog.db"
	c.CacheDir = "cache"
	c.LogFile = "productkeeper.log"
	c.LogLevel = "info"
	c.PerPage = 5
	c.PullProducts = false
	c.ActorRole = models.RoleEmployee
	c.ActorID = ""
}

// Actor is the identity recorded on every staged mutation.
func (c *Config) Actor() models.Actor {
	return models.Actor{Role: c.ActorRole, ID: c.ActorID}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
