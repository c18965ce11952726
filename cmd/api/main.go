package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vegas-server/internal/config"
	"vegas-server/internal/server"
)

const shutdownTimeout = 30 * time.Second

func gracefulShutdown(relay *server.Server, httpServer *http.Server, logger *slog.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutdown signal received, press Ctrl+C again to force")
	stop()

	// Rooms are saved and every socket is told the server is going away.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := relay.Shutdown(ctx); err != nil {
		logger.Error("Error during relay shutdown", "error", err)
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server forced to shutdown", "error", err)
	}

	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	relay, err := server.NewServer(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to start relay", "error", err)
		os.Exit(1)
	}
	httpServer := relay.HTTPServer()

	done := make(chan bool, 1)
	go gracefulShutdown(relay, httpServer, logger, done)

	logger.Info("Listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server error", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("Graceful shutdown complete")
}
