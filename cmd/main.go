package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Aygren/balendip-sub000/internal/adapters/http/api"
	"github.com/Aygren/balendip-sub000/internal/adapters/http/swagger"
	"github.com/Aygren/balendip-sub000/internal/adapters/progress"
	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/internal/adapters/store/memory"
	"github.com/Aygren/balendip-sub000/internal/adapters/store/rest"
	"github.com/Aygren/balendip-sub000/internal/adapters/store/sqlite"
	app "github.com/Aygren/balendip-sub000/internal/app"
	"github.com/Aygren/balendip-sub000/internal/config"
	"github.com/Aygren/balendip-sub000/pkg/logger"
	"github.com/Aygren/balendip-sub000/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		// logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Error(ctx, "failed to load config", logger.Error(err))
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "balendip exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains the server and the service.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	if cfg.JWTSecret == "" {
		log.Warn(ctx, "jwt_secret is empty; all requests run as the development user", logger.String("dev_user_id", cfg.DevUserID))
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("backend", cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newBackend opens the entity store selected by cfg.Backend.
func newBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		b, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return b, nil
	case config.BackendREST:
		b, err := rest.New(cfg.RESTURL, cfg.RESTAPIKey, rest.WithTimeout(config.Millis(cfg.RESTTimeoutMS)))
		if err != nil {
			return nil, fmt.Errorf("rest backend: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
}

// newService assembles the store adapter, progress store and service.
func newService(cfg *config.Config, log logger.Logger) (*app.Service, error) {
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	adapter, err := store.New(backend,
		store.WithLogger(log.Named("store")),
		store.WithRetryPolicy(store.RetryPolicy{
			MaxRetries: cfg.RetryMax,
			BaseDelay:  config.Millis(cfg.RetryBaseDelayMS),
			MaxDelay:   config.Millis(cfg.RetryMaxDelayMS),
		}),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	ps, err := progress.Open(cfg.ProgressPath, progress.WithLogger(log.Named("progress")))
	if err != nil {
		_ = adapter.Close()
		return nil, fmt.Errorf("open progress store: %w", err)
	}
	svc, err := app.New(adapter, ps,
		app.WithLogger(log),
		app.WithListPolicy(config.Millis(cfg.ListStaleMS), config.Millis(cfg.ListEvictMS)),
		app.WithSpherePolicy(config.Millis(cfg.SphereStaleMS), config.Millis(cfg.SphereEvictMS)),
		app.WithPageSize(cfg.PageSize, cfg.MaxPageSize),
		app.WithRefreshWorkers(cfg.RefreshQueueSize, cfg.RefreshWorkers),
		app.WithMaxCollect(cfg.MaxCollectEvents),
	)
	if err != nil {
		_ = adapter.Close()
		_ = ps.Close()
		return nil, err
	}
	return svc, nil
}

// newMux registers the docs and business routes.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	auth := api.NewAuthenticator(cfg.JWTSecret, cfg.DevUserID)
	api.NewServer(svc, svc, auth, api.WithLogger(log.Named("http"))).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater periodically refreshes the queue and cache gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
