package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cultivation_backend/internal/catalog"
	"cultivation_backend/internal/cultivation"
	"cultivation_backend/internal/events"
	apphttp "cultivation_backend/internal/http"
	"cultivation_backend/internal/http/router"
	"cultivation_backend/platform/cache"
	"cultivation_backend/platform/config"
	"cultivation_backend/platform/db"
	"cultivation_backend/platform/logger"
	"cultivation_backend/platform/metrics"
	"cultivation_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if cfg.GetRunMigrations() {
		applied, err := db.RunMigrations(ctx, pool)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database migrations complete", "applied", applied)
	}

	catalogCache, err := cache.New(cfg, "cultivation:catalog:")
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer func() { _ = catalogCache.Close() }()
	if cfg.GetRedisURL() == "" {
		log.Info("catalog cache disabled")
	}

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Close()

	m := metrics.New()
	val := validator.New()

	// ========================================================================
	// Domain Modules
	// ========================================================================

	cultivationModule, err := cultivation.NewModule(pool, eventBus, val, cfg, log, m)
	if err != nil {
		return fmt.Errorf("init cultivation module: %w", err)
	}
	catalogModule := catalog.NewModule(pool, catalogCache, cfg, eventBus, val, log, m)

	cultivation.NewSubscriber(m, log).RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		Metrics:  m,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			cultivationModule,
			catalogModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// withRetry runs fn up to attempts times with quadratic backoff.
func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
