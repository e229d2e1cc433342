package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tracker_server/config"
	"tracker_server/core/domain"
	"tracker_server/internal/bootstrap"
	"tracker_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "all", "Run mode: api, worker, all, once")
	user := flag.String("user", "", "User ID to sync in once mode")
	maxResults := flag.Int("max", 0, "Max messages to fetch in once mode")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	bootstrap.InitLogger(cfg, "tracker-"+*mode)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	deps, cleanup, err := bootstrap.NewDependencies(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	switch *mode {
	case "api":
		runAPI(cfg, deps)
	case "worker":
		runWorker(cfg, deps)
	case "all":
		w := startWorker(cfg, deps)
		runAPI(cfg, deps)
		if w != nil {
			w.Stop()
		}
	case "once":
		runOnce(deps, *user, *maxResults)
	default:
		logger.Error("Unknown mode: %s", *mode)
	}
}

func runAPI(cfg *config.Config, deps *bootstrap.Dependencies) {
	app := bootstrap.NewAPI(cfg, deps)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
		} else {
			logger.Info("API server shut down gracefully")
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Error("Server stopped: %v", err)
	}
}

// startWorker starts the background worker when a stream is configured.
func startWorker(cfg *config.Config, deps *bootstrap.Dependencies) *bootstrap.Worker {
	w, err := bootstrap.NewWorker(cfg, deps)
	if err != nil {
		logger.Warn("Worker disabled: %v", err)
		return nil
	}
	if err := w.Start(); err != nil {
		logger.Error("Failed to start worker: %v", err)
		return nil
	}
	return w
}

func runWorker(cfg *config.Config, deps *bootstrap.Dependencies) {
	w, err := bootstrap.NewWorker(cfg, deps)
	if err != nil {
		logger.Error("Failed to initialize worker: %v", err)
		return
	}
	if err := w.Start(); err != nil {
		logger.Error("Failed to start worker: %v", err)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Worker shut down gracefully")
	case <-time.After(shutdownTimeout):
		logger.Warn("Worker shutdown timed out")
	}
}

// runOnce syncs a single user and prints the summary as JSON.
func runOnce(deps *bootstrap.Dependencies, user string, maxResults int) {
	userID, err := uuid.Parse(user)
	if err != nil {
		logger.Error("once mode needs -user <uuid>: %v", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := deps.Sync.Sync(ctx, userID, &domain.SyncOptions{MaxResults: maxResults})
	if err != nil {
		logger.Error("Sync failed: %v", err)
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Error("Failed to write summary: %v", err)
	}
}
