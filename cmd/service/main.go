// Package main is the entry point for the quote board service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/quoteboard/internal/adapters/clients"
	"github.com/jsamuelsen/quoteboard/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quoteboard/internal/adapters/http"
	"github.com/jsamuelsen/quoteboard/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quoteboard/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quoteboard/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quoteboard/internal/app"
	"github.com/jsamuelsen/quoteboard/internal/platform/config"
	"github.com/jsamuelsen/quoteboard/internal/platform/logging"
	"github.com/jsamuelsen/quoteboard/internal/platform/telemetry"
	"github.com/jsamuelsen/quoteboard/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

// durableStore is a key-value backend that can also report its health.
type durableStore interface {
	ports.KeyValueStore
	ports.HealthChecker
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Optional .env file, then the profile
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.Background()); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Open the durable store
	durable, closeDurable, err := openDurableStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := closeDurable(); closeErr != nil {
			logger.Error("closing durable store", slog.Any("error", closeErr))
		}
	}()

	// 6. Create the HTTP client and the remote quote source (ACL)
	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Remote.BaseURL,
		ServiceName: cfg.Remote.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP client: %w", err)
	}

	source := acl.NewQuoteSource(acl.QuoteSourceConfig{
		Client:     httpClient,
		FetchPath:  cfg.Remote.FetchPath,
		NotifyPath: cfg.Remote.NotifyPath,
		Logger:     logger,
	})

	// 7. Health checks: the store gates readiness, the remote only degrades it
	healthRegistry := ports.NewHealthRegistry()

	if err := healthRegistry.Register(durable, true); err != nil {
		return fmt.Errorf("registering store health check: %w", err)
	}

	if err := healthRegistry.Register(source, false); err != nil {
		return fmt.Errorf("registering quote source health check: %w", err)
	}

	// 8. Create and load the quote store (application layer)
	store := app.NewStore(app.StoreConfig{
		Durable:      durable,
		Session:      memory.New("session-store"),
		Remote:       source,
		Logger:       logger,
		SnapshotSize: cfg.Remote.SnapshotSize,
	})

	if err := store.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing quote store: %w", err)
	}

	// 9. Create handlers
	buildInfo := handlers.NewBuildInfo(cfg.App.Name, Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo)
	quoteHandler := handlers.NewQuoteHandler(store)

	// 10. Create the HTTP server and router
	server := http.New(&cfg.Server, logger)

	http.SetupRouter(server.Engine(), http.RouterConfig{
		Logger:        logger,
		ServiceName:   cfg.App.Name,
		HealthHandler: healthHandler,
		QuoteHandler:  quoteHandler,
		Timeout:       cfg.Server.RequestTimeout,
	})

	// 11. Background sync
	var scheduler *app.SyncScheduler
	if cfg.Sync.Enabled {
		scheduler = app.NewSyncScheduler(store, app.SchedulerConfig{
			InitialDelay: cfg.Sync.InitialDelay,
			Interval:     cfg.Sync.Interval,
			Logger:       logger,
		})

		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("starting sync scheduler: %w", err)
		}
	}

	// 12. Serve until a signal or a server error
	return serve(ctx, logger, server, scheduler, cfg.Server.ShutdownTimeout)
}

// openDurableStore opens the configured backend. The returned func closes it.
func openDurableStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (durableStore, func() error, error) {
	if cfg.Driver == "memory" {
		logger.Warn("durable store is in memory; quotes are lost on exit")
		return memory.New("quote-store"), func() error { return nil }, nil
	}

	s, err := sqlite.Open(ctx, cfg.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening durable store: %w", err)
	}

	return s, s.Close, nil
}

// serve runs the server and waits for ctx to end, then stops the scheduler
// and drains in-flight requests within shutdownTimeout.
func serve(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	scheduler *app.SyncScheduler,
	shutdownTimeout time.Duration,
) error {
	serverErr := server.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case err, ok := <-serverErr:
			if ok {
				return fmt.Errorf("server error: %w", err)
			}
		case <-gctx.Done():
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("initiating graceful shutdown",
			slog.Duration("timeout", shutdownTimeout),
		)

		if scheduler != nil {
			scheduler.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stop accepting new requests, drain in-flight
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}
