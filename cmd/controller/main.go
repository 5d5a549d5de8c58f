package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/meridian/controlplane/internal/config"
	"github.com/meridian/controlplane/internal/control"
	"github.com/meridian/controlplane/internal/core"
	"github.com/meridian/controlplane/internal/logging"
	"github.com/meridian/controlplane/internal/metrics"
	"github.com/meridian/controlplane/internal/store"
	"github.com/meridian/controlplane/internal/store/memory"
	"github.com/meridian/controlplane/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		st = postgres.NewStore(pool)
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

	clk := clock.New()
	orch := core.NewOrchestrator(st, tiers, cfg, core.LocalProvisioner{}, clk, events, logger)
	ctrl := control.NewController(orch, st, cfg, clk, logger)

	metricsServer := metrics.NewServer(cfg.MetricsListenAddr)
	go func() {
		logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("shutting down controller")
		cancel()
	}()

	logger.Info().
		Dur("evaluate_interval", cfg.EvaluateInterval).
		Str("reset_schedule", cfg.PeriodResetSchedule).
		Msg("starting control loop")
	if err := ctrl.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("control loop failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)
}
