// Command ingestd is the long-running ingestion scheduler daemon: it
// restores every season's active job from the database, runs each on its own
// timer, and serves a thin read-only status surface for operators.
//
// Usage:
//
//	ingestd
//	API_PORT=8100 ingestd

// @title Rinkvault Ingestion Scheduler
// @version 1.0.0
// @description Read-only operator surface for the per-season NHL Pro Clubs ingestion scheduler.
// @host localhost:8100
// @BasePath /
// @schemes http
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

	"github.com/rinkvault/scheduler/internal/api"
	"github.com/rinkvault/scheduler/internal/config"
	"github.com/rinkvault/scheduler/internal/db"
	"github.com/rinkvault/scheduler/internal/scheduler"
	"github.com/rinkvault/scheduler/internal/upstream"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger.Info("connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected", "min_conns", cfg.DBPoolMinConns, "max_conns", cfg.DBPoolMaxConns)

	client := upstream.NewClient(cfg, logger)
	manager := scheduler.NewManager(pool.Pool, client, cfg.ShutdownGrace, logger)

	logger.Info("restoring active jobs...")
	if err := manager.RestoreActive(ctx); err != nil {
		logger.Error("failed to restore active jobs", "error", err)
		os.Exit(1)
	}

	// Reconcile this process's Job registry against config changes made by
	// any other process (chiefly the operator CLI).
	go manager.Listen(ctx, cfg.DatabaseURL)

	router := api.NewRouter(manager, cfg)
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting operator surface", "addr", addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	manager.Shutdown(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("stopped")
}
