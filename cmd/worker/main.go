package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/s9b/memenem-backend/internal/app"
	"github.com/s9b/memenem-backend/internal/config"
	"github.com/s9b/memenem-backend/internal/logging"
)

// The worker runs the cache janitor on its own, for deployments where
// several API replicas share one Valkey store.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.NewCacheOnly(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize cache store")
	}
	defer a.Store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		removed := a.Janitor.Sweep(ctx)
		logger.Info().Int64("removed", removed).Msg("sweep finished")
		return
	}

	if err := a.Janitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("janitor stopped")
	}
	logger.Info().Msg("worker stopped")
}
