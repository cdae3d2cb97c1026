package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxchat/voxchat/internal/api"
	"github.com/voxchat/voxchat/internal/config"
	"github.com/voxchat/voxchat/internal/hub"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	if cfg.AdminKey == "" {
		logger.Warn().Msg("ADMIN_KEY not set; admin stats endpoint is disabled")
	}

	// Room registry + background reaper
	registry := hub.NewRegistry(logger)
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go registry.Run(reaperCtx, cfg.RoomTTL, cfg.SweepInterval)

	// Create router
	router := api.NewRouter(logger, cfg, registry)

	// Create server. No write timeout: websocket connections stay open for
	// the lifetime of a participant.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Dur("room_ttl", cfg.RoomTTL).
			Dur("sweep_interval", cfg.SweepInterval).
			Msg("starting voxchat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stopReaper()

	// Graceful shutdown with 10 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
