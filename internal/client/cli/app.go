package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/productkeeper/internal/client/attachment"
	"github.com/dmitrijs2005/productkeeper/internal/client/config"
	"github.com/dmitrijs2005/productkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/productkeeper/internal/client/gateway"
	"github.com/dmitrijs2005/productkeeper/internal/client/services"
	"github.com/dmitrijs2005/productkeeper/internal/client/store"
	"github.com/dmitrijs2005/productkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/productkeeper/internal/client/view"
	"github.com/dmitrijs2005/productkeeper/internal/logging"
)

type App struct {
	config   *config.Config
	products services.ProductService
	monitor  *connectivity.Monitor
	engine   *syncer.Engine
	logger   logging.Logger
	reader   *bufio.Reader
	out      io.Writer
	closers  []io.Closer

	mu      sync.Mutex
	current *view.View
}

// NewApp opens the local store, dials the catalog server lazily and wires
// the sync engine. Nothing talks to the network until Run starts the
// connectivity monitor.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logCloser := logging.NewFileLogger(logging.FileOptions{
		Path:       c.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Level:      logging.ParseLevel(c.LogLevel),
	})

	a := &App{config: c, logger: logger, reader: bufio.NewReader(os.Stdin), out: os.Stdout}
	a.closers = append(a.closers, logCloser)

	st, err := store.Open(ctx, c.DatabasePath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	a.closers = append(a.closers, st)

	att, err := attachment.NewManager(c.CacheDir, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	gw, err := gateway.NewGRPCGateway(c.ServerEndpointAddr, c.RequestTimeout, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	// the gateway must close before the store so in-flight calls fail fast
	a.closers = append([]io.Closer{gw}, a.closers...)

	rec := syncer.NewReconciler(st, gw, att, logger, c.PullProducts)
	a.engine = syncer.NewEngine(rec, c.SyncDebounce, logger)
	a.monitor = connectivity.NewMonitor(gw, c.OnlineCheckInterval, logger)
	a.products = services.NewProductService(st, att, view.NewComposer(st, att, c.PerPage), a.engine, a.monitor.Online, logger)

	return a, nil
}

// Run starts background connectivity tracking and blocks in the REPL until
// the user exits or ctx is canceled.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.monitor.OnChange(func(prev, next connectivity.Status) {
		a.logger.Info(ctx, "connectivity changed", "from", string(prev), "to", string(next))
		printlnFn(fmt.Sprintf("Switched to %s mode", next))
		if next == connectivity.StatusOnline {
			a.engine.Request(ctx)
		}
	})
	a.engine.OnResult(func(res syncer.Result, err error) {
		if res.Offline {
			a.monitor.Set(ctx, connectivity.StatusOffline)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error(ctx, "sync failed", "error", err)
		}
	})

	go a.monitor.Run(ctx)

	runREPL(ctx, a, a.getStatus, a.reader)

	cancel()
	a.releaseCurrent()
	a.engine.Stop()
	a.close()
}

func (a *App) getStatus() string {
	mode := a.monitor.Status()
	st, err := a.products.Status(context.Background())
	if err != nil || st.Pending() == 0 {
		return string(mode)
	}
	return fmt.Sprintf("%s, %d pending", mode, st.Pending())
}

// setCurrent replaces the displayed page and releases the previous one.
func (a *App) setCurrent(v *view.View) {
	a.mu.Lock()
	prev := a.current
	a.current = v
	a.mu.Unlock()
	if err := prev.Release(); err != nil {
		a.logger.Warn(context.Background(), "release view", "error", err)
	}
}

func (a *App) currentView() *view.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *App) releaseCurrent() {
	a.setCurrent(nil)
}

func (a *App) close() {
	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "close:", err)
		}
	}
	a.closers = nil
}
