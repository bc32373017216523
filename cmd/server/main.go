// Package main is the entry point for Autopilot, the portfolio-autopilot
// reconciliation service. It periodically converges broker portfolios to
// strategy targets and replays copy-trade counterparties into shadow ledgers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/autopilot/internal/config"
	"github.com/aristath/autopilot/internal/di"
	"github.com/aristath/autopilot/internal/server"
	"github.com/aristath/autopilot/pkg/logger"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// main loads configuration, wires the container, starts the HTTP server and
// the cron trigger, then blocks until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	version := getEnv("VERSION", "dev")
	log.Info().Str("version", version).Msg("Starting Autopilot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	// Closing the database writes the final WAL checkpoint
	defer container.Close()

	srv := server.New(server.Config{
		Log:        log,
		Port:       cfg.Port,
		Version:    version,
		Portfolios: container.PortfolioRepo,
		Sweeper:    container.Sweeper,
		Logs:       container.StrategyLogRepo,
		Database:   container.DB,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	container.Trigger.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	// Stop firing new sweeps and wait for an in-flight cycle to finish
	container.Trigger.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
