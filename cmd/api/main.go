// Command api is the QueuePulse backend service: HTTP API plus the
// wait-time poller, notification evaluation engine, and maintenance
// tickers, all in one process.
//
// Usage:
//
//	queuepulse-api
//	API_PORT=8080 queuepulse-api

// @title QueuePulse Data API
// @version 1.0.0
// @description Theme-park wait-time API serving parks, attractions, and current wait times polled from Queue-Times.
// @host localhost:3000
// @BasePath /api/v1
// @schemes http https
// @contact.name QueuePulse
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvins/queuepulse-data/internal/api"
	"github.com/dvins/queuepulse-data/internal/cache"
	"github.com/dvins/queuepulse-data/internal/config"
	"github.com/dvins/queuepulse-data/internal/db"
	"github.com/dvins/queuepulse-data/internal/maintenance"
	"github.com/dvins/queuepulse-data/internal/notify"
	"github.com/dvins/queuepulse-data/internal/poller"
	"github.com/dvins/queuepulse-data/internal/source"
	"github.com/dvins/queuepulse-data/internal/waits"

	_ "github.com/dvins/queuepulse-data/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Start the wait-time poller
	client := source.NewClient(cfg.QueueTimesBaseURL, cfg.QueueTimesRPM, logger)
	store := waits.NewStore(pool.Pool)
	p := poller.New(client, store, cfg.PollWorkers, logger)
	go p.Start(ctx, cfg.PollInterval)

	// Start the notification evaluation engine (if FCM is configured)
	fcmSender := notify.NewFCMSender(cfg.FCMCredentialsFile, logger)
	if fcmSender != nil {
		engine := notify.NewEngine(notify.NewPGStore(pool.Pool), fcmSender, cfg.EvalWorkers, logger)
		go engine.Start(ctx, cfg.EvalInterval)
	} else {
		logger.Info("Notification evaluation disabled (no FIREBASE_CREDENTIALS_FILE)")
	}

	// Start maintenance tickers (history pruning, stale deactivation)
	go maintenance.Start(ctx, pool.Pool, maintenance.DefaultConfig(), logger)

	// Create router
	router := api.NewRouter(pool.Pool, appCache, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting QueuePulse Data API",
			"addr", addr,
			"environment", cfg.Environment,
			"poll_interval", cfg.PollInterval,
			"eval_interval", cfg.EvalInterval)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
