package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd", "-a", "127.0.0.1:9090", "-i", "10", "-t", "4", "-debounce", "50",
			"-d", "x.db", "-cache", "tmp", "-l", "x.log", "-log-level", "debug", "-p", "8", "-pull",
			"-role", "admin", "-user", "u1"}, expectPanic: false,
			expected: &Config{ServerEndpointAddr: "127.0.0.1:9090", OnlineCheckInterval: 10 * time.Second,
				RequestTimeout: 4 * time.Second, SyncDebounce: 50 * time.Millisecond, DatabasePath: "x.db",
				CacheDir: "tmp", LogFile: "x.log", LogLevel: "debug", PerPage: 8, PullProducts: true,
				ActorRole: models.RoleAdmin, ActorID: "u1"}},
		{name: "Test2 incorrect check interval", args: []string{"cmd", "-a", "127.0.0.1:9090", "-i", "abc"}, expectPanic: true, expected: &Config{}},
		{name: "Test3 foreign flags ignored", args: []string{"cmd", "-c", "conf.json", "-a", "h:1"}, expectPanic: false,
			expected: &Config{ServerEndpointAddr: "h:1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
