// Command api is the Farmsight prospect ranking API server.
//
// Usage:
//
//	farmsight-api
//	API_PORT=8080 farmsight-api

// @title Farmsight Ranking API
// @version 1.0.0
// @description Prospect ranking API serving composite scores, cohort percentile breakpoints, and per-player metric breakdowns.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name Farmsight
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

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/api"
	"github.com/farmsight/farmsight-data/internal/cache"
	"github.com/farmsight/farmsight-data/internal/cohort"
	"github.com/farmsight/farmsight-data/internal/config"
	"github.com/farmsight/farmsight-data/internal/db"
	"github.com/farmsight/farmsight-data/internal/listener"
	"github.com/farmsight/farmsight-data/internal/maintenance"
	"github.com/farmsight/farmsight-data/internal/rank"
	"github.com/farmsight/farmsight-data/internal/store"

	_ "github.com/farmsight/farmsight-data/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Debug logging is opt-in and never enabled in production.
	if cfg.Debug && !cfg.IsProduction() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
		slog.SetDefault(logger)
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

	// Wire the ranking engine
	st := store.New(pool.Pool)
	agg := aggregate.New(st)
	engine := rank.New(agg, st, st, st, cfg, logger)

	// Start LISTEN/NOTIFY consumer: invalidate caches on snapshot publish
	go listener.Start(ctx, cfg.DatabaseURL, appCache, logger)

	// Start maintenance tickers (scheduled cohort rebuild, stale cleanup)
	builder := cohort.NewBuilder(st, st, logger)
	go maintenance.Start(ctx, builder, st, maintenance.DefaultConfig(cfg), logger)

	// Create router
	router := api.NewRouter(pool.Pool, appCache, cfg, engine, st)

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
		logger.Info("Starting Farmsight Ranking API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
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
