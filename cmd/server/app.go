package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/atlas-api/internal/artifact"
	"github.com/phrazzld/atlas-api/internal/auth"
	"github.com/phrazzld/atlas-api/internal/config"
	"github.com/phrazzld/atlas-api/internal/events"
	"github.com/phrazzld/atlas-api/internal/generation"
	"github.com/phrazzld/atlas-api/internal/metrics"
	"github.com/phrazzld/atlas-api/internal/platform/natsbus"
	"github.com/phrazzld/atlas-api/internal/platform/rendertool"
	"github.com/phrazzld/atlas-api/internal/platform/telemetry"
	"github.com/phrazzld/atlas-api/internal/ratelimit"
	"github.com/phrazzld/atlas-api/internal/task"
	"github.com/prometheus/client_golang/prometheus"
)

// application holds all initialized dependencies used by the server.
type application struct {
	// Core dependencies
	config *config.Config
	logger *slog.Logger

	// Observability
	registry          *prometheus.Registry
	metrics           *metrics.Metrics
	telemetryShutdown func(context.Context) error

	// Authentication and admission control
	authority *auth.KeyAuthority
	limiter   *ratelimit.Limiter

	// Generation pipeline
	store      artifact.Store
	catalog    *generation.Catalog
	generators *generation.Registry
	queue      *task.Queue

	// Event publishing
	publisher *events.Fanout
	bus       *natsbus.Publisher // nil unless NATS is configured
}

// newApplication creates a new application instance with all
// dependencies initialized and the task queue running. It accepts the
// core dependencies that must be established before anything else:
// configuration and the process logger.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	// Use a private registry rather than the global default so tests can
	// construct applications side by side without collector collisions.
	app.registry = prometheus.NewRegistry()
	app.metrics = metrics.New(app.registry)

	var err error
	app.telemetryShutdown, err = telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	// Initialize the API key authority
	app.authority, err = auth.NewKeyAuthority(cfg.Auth.Secret, cfg.Auth.ServiceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key authority: %w", err)
	}
	logger.Info("API key authority initialized",
		"service_key_configured", cfg.Auth.ServiceKey != "")

	// Initialize the per-user rate limiter
	app.limiter = ratelimit.NewLimiter()

	// Initialize the artifact store
	app.store, err = newArtifactStore(ctx, cfg.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	metrics.RegisterArtifactGauge(app.registry, app.store.Len)
	logger.Info("Artifact store initialized", "backend", cfg.Artifacts.Backend)

	// Initialize the elevation provider catalog
	app.catalog = generation.DefaultCatalog()

	// Register the render tool for every generation kind. All kinds run
	// through the same external binary; the job payload selects the mode.
	runner := rendertool.New(cfg.Generator, logger)
	app.generators = generation.NewRegistry()
	for _, kind := range []generation.Kind{
		generation.KindTerrain,
		generation.KindMesh,
		generation.KindTexture,
		generation.KindVegetation,
		generation.KindSatellite,
		generation.KindBundle,
	} {
		app.generators.Register(kind, runner)
	}
	logger.Info("Render tool initialized",
		"bin_path", cfg.Generator.BinPath,
		"kinds", len(app.generators.Kinds()))

	// Initialize lifecycle event publishing. The fanout always exists;
	// the NATS sink joins it only when a URL is configured.
	app.publisher = events.NewFanout(logger)
	if cfg.Events.NATSURL != "" {
		app.bus, err = natsbus.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		app.publisher.Register(app.bus)
		logger.Info("NATS event publishing enabled",
			"subject_prefix", cfg.Events.SubjectPrefix)
	}

	// Initialize and start the task queue. This comes last so the workers
	// never observe a partially built dependency graph.
	app.queue = task.NewQueue(task.Config{
		Workers:       cfg.Queue.Workers,
		QueueDepth:    cfg.Queue.Depth,
		RetentionTTL:  cfg.Queue.RetentionTTL,
		StuckAfter:    cfg.Queue.StuckAfter,
		SweepInterval: cfg.Queue.SweepInterval,
		WorkspaceRoot: cfg.Queue.WorkspaceRoot,
	}, app.store, app.generators, app.publisher, app.metrics, logger)
	app.queue.Start()

	return app, nil
}

// newArtifactStore selects the blob store backend from configuration.
func newArtifactStore(ctx context.Context, cfg config.ArtifactsConfig) (artifact.Store, error) {
	switch cfg.Backend {
	case "s3":
		return artifact.NewS3Store(ctx, artifact.S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.KeyPrefix,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
	default:
		return artifact.NewDiskStore(cfg.Root)
	}
}

// Run starts the HTTP server and blocks until it shuts down, then
// releases application resources.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()
	err := app.startHTTPServer(ctx, router)
	app.cleanup()
	return err
}

// cleanup releases resources in reverse initialization order. All
// guards tolerate a partially constructed application.
func (app *application) cleanup() {
	app.logger.Info("Running application cleanup")

	if app.queue != nil {
		app.queue.Stop()
	}

	if app.bus != nil {
		app.bus.Close()
	}

	if app.telemetryShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.telemetryShutdown(shutdownCtx); err != nil {
			app.logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}

	app.logger.Info("Application cleanup completed")
}
