// Command catalog-seed loads a YAML catalog file into the database.
//
//	catalog-seed -file catalog.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cultivation_backend/internal/catalog"
	"cultivation_backend/internal/events"
	"cultivation_backend/platform/cache"
	"cultivation_backend/platform/config"
	"cultivation_backend/platform/db"
	"cultivation_backend/platform/logger"
	"cultivation_backend/platform/validator"
)

func main() {
	file := flag.String("file", "catalog.yaml", "path to the YAML catalog")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *file); err != nil {
		log.Error("catalog seed failed", "file", *file, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if cfg.GetRunMigrations() {
		if _, err := db.RunMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// The API may be serving from the same Redis, so seeding drops its entries.
	c, err := cache.New(cfg, "cultivation:catalog:")
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer func() { _ = c.Close() }()

	bus := events.NewInMemoryBus(log)
	defer bus.Close()

	module := catalog.NewModule(pool, c, cfg, bus, validator.New(), log, nil)
	res, err := module.Service().LoadSeed(ctx, f)
	if err != nil {
		return err
	}

	log.Info("catalog seeded",
		"strains", res.Strains,
		"substrates", res.Substrates,
		"contamination_codes", res.ContaminationCodes)
	return nil
}
