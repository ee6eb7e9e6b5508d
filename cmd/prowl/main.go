// Prowl server — streams multi-agent chat over SSE, builds reviewable
// drafts from structured agent output, and commits confirmed drafts to
// Teamwork.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/prowlhq/prowl/pkg/agent"
	"github.com/prowlhq/prowl/pkg/api"
	"github.com/prowlhq/prowl/pkg/config"
	"github.com/prowlhq/prowl/pkg/store"
	"github.com/prowlhq/prowl/pkg/submit"
	"github.com/prowlhq/prowl/pkg/teamwork"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envFile, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envFile)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting prowl", "http_port", cfg.HTTPPort, "dry_run", cfg.DryRun)

	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Error closing database", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	modelClient, err := agent.NewOpenAIClient(cfg.Model)
	if err != nil {
		slog.Error("Failed to initialize model client", "error", err)
		os.Exit(1)
	}
	slog.Info("Model client initialized", "model", cfg.Model.Model)

	teamworkClient := teamwork.NewClient(cfg.Teamwork)
	submitService := submit.NewService(teamworkClient, cfg.DryRun)

	server := api.NewServer(cfg, modelClient, db, submitService)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
