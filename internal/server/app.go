// Package server initializes and runs the catalog server.
// It connects to PostgreSQL, applies migrations, opens the image bucket,
// and serves the catalog over gRPC until the process is signaled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/logging"
	"github.com/dmitrijs2005/productkeeper/internal/server/config"
	"github.com/dmitrijs2005/productkeeper/internal/server/imagestore"
	"github.com/dmitrijs2005/productkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/productkeeper/internal/server/services"
	"github.com/sethvargo/go-retry"

	gs "github.com/dmitrijs2005/productkeeper/internal/server/grpc"
)

var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}

	pingBackoffBase = 200 * time.Millisecond
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	catalog *services.CatalogService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logging.ParseLevel(c.LogLevel)})))

	db, err := connectDB(ctx, c.DatabaseDSN, c.DatabaseConnectTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	images, err := imagestore.NewS3Store(ctx, imagestore.Options{
		User:     c.S3RootUser,
		Password: c.S3RootPassword,
		Bucket:   c.S3Bucket,
		Region:   c.S3Region,
		Endpoint: c.S3BaseEndpoint,
		URLTTL:   c.ImageURLTTL,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("image store init error: %w", err)
	}

	catalog := services.NewCatalogService(db, rm, images, logger)

	return &App{config: c, logger: logger, db: db, catalog: catalog}, nil
}

// connectDB opens the pool and pings it with exponential backoff until it
// answers or timeout elapses.
func connectDB(ctx context.Context, dsn string, timeout time.Duration, logger logging.Logger) (*sql.DB, error) {
	db, err := openDB(dsn)
	if err != nil {
		return nil, err
	}

	b := retry.WithMaxDuration(timeout, retry.NewExponential(pingBackoffBase))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			logger.Warn(ctx, "database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.catalog)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close", "error", err)
	}
	app.logger.Info(context.Background(), "Stopped")
}
