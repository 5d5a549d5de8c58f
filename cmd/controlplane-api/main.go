package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/meridian/controlplane/internal/api"
	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/core"
	"github.com/meridian/controlplane/internal/logging"
	"github.com/meridian/controlplane/internal/store"
	"github.com/meridian/controlplane/internal/store/memory"
	"github.com/meridian/controlplane/internal/store/postgres"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		if cfg.DatabaseURL == "" {
			logger.Fatal().Msg("DATABASE_URL is required to run migrations")
		}
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := postgres.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	var pinger api.Pinger
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		st = postgres.NewStore(pool)
		pinger = pool
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using volatile in-memory store")
		st = memory.New()
	}

	tiers, err := config.LoadTiers(cfg.TierConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load tier tables")
	}

	events := core.NewDispatcher(core.LogNotifier{Logger: logger}, logger)
	defer events.Close()

	orch := core.NewOrchestrator(st, tiers, cfg, core.LocalProvisioner{}, clock.New(), events, logger)
	srv := api.NewServer(logger, orch, cfg, pinger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting control plane API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}
