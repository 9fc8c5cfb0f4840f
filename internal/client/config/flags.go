package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/dmitrijs2005/productkeeper/internal/flagx"
)

var knownFlags = []string{"-a", "-i", "-t", "-debounce", "-d", "-cache", "-l", "-log-level", "-p", "-pull", "-role", "-user"}

// parseFlags populates Config fields from command-line flags. os.Args is
// filtered with flagx.FilterArgs first so flags owned by other layers
// (such as -c) do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "remote request timeout (in seconds)")
	debounce := fs.Int("debounce", int(cfg.SyncDebounce.Milliseconds()), "delay before a requested sync starts (in milliseconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the local database")
	fs.StringVar(&cfg.CacheDir, "cache", cfg.CacheDir, "directory for transient image files")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.IntVar(&cfg.PerPage, "p", cfg.PerPage, "products per page")
	fs.BoolVar(&cfg.PullProducts, "pull", cfg.PullProducts, "refresh confirmed products from the server on every sync")
	role := fs.String("role", string(cfg.ActorRole), "actor role: admin or employee")
	fs.StringVar(&cfg.ActorID, "user", cfg.ActorID, "actor id recorded on changes")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	cfg.SyncDebounce = time.Duration(*debounce) * time.Millisecond
	cfg.ActorRole = models.Role(*role)
}
