// Package main implements the entry point for the Atlas API server
// which authenticates callers, queues map generation jobs and streams
// the finished artifacts back to them.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phrazzld/atlas-api/internal/config"
	"github.com/phrazzld/atlas-api/internal/platform/logger"
)

// Build metadata, overridden at link time via -ldflags.
var (
	version = "dev"
	commit  = ""
)

const serviceName = "atlas-api"

// main wires configuration, logging and the dependency graph together,
// then runs the HTTP server until a termination signal arrives.
func main() {
	// A missing .env file is not an error; production deployments carry
	// everything in the environment.
	_ = godotenv.Load()

	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to build application", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		appLogger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up structured logging.
// Returns the loaded config, the process logger and any initialization
// error.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"queue_workers", cfg.Queue.Workers,
		"queue_depth", cfg.Queue.Depth,
		"artifact_backend", cfg.Artifacts.Backend,
		"version", version)

	// Surface presence of optional integrations without echoing values.
	if cfg.Auth.ServiceKey != "" {
		slog.Debug("Auth configuration", "service_key_present", true)
	}
	if cfg.Events.NATSURL != "" {
		slog.Debug("Events configuration", "nats_url_present", true)
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		slog.Debug("Telemetry configuration", "otlp_endpoint_present", true)
	}

	return cfg, appLogger, nil
}
