package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/phrazzld/atlas-api/internal/api"
	apiMiddleware "github.com/phrazzld/atlas-api/internal/api/middleware"
	"github.com/phrazzld/atlas-api/internal/generation"
	"github.com/phrazzld/atlas-api/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates and configures the application router with all
// routes and middleware. It accepts the application dependencies to
// create handlers and register routes. Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(apiMiddleware.TraceMiddleware)
	r.Use(chimiddleware.Recoverer)

	if origins := app.config.Server.CORSOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	// Coarse per-IP throttle ahead of authentication. The per-user quotas
	// inside the authed group are the real budget; this only blunts
	// anonymous floods.
	if limit := app.config.Server.IPRequestLimit; limit > 0 {
		r.Use(httprate.LimitByIP(limit, time.Minute))
	}

	// Create API handlers using the application's services
	generateHandler := api.NewGenerateHandler(app.queue, app.catalog, app.logger)
	taskHandler := api.NewTaskHandler(app.queue, app.logger)
	providerHandler := api.NewProviderHandler(app.catalog, app.logger)
	keyHandler := api.NewKeyHandler(app.authority, app.logger)
	statusHandler := api.NewStatusHandler(app.queue, api.VersionInfo{
		Name:    serviceName,
		Version: version,
		Commit:  commit,
	}, app.logger)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.authority, app.metrics, app.logger)
	quotaMiddleware := apiMiddleware.NewQuotaMiddleware(app.limiter, app.metrics)

	defaultQuota := ratelimit.Quota{
		Name:   "default",
		Limit:  app.config.Quota.DefaultLimit,
		Window: app.config.Quota.DefaultWindow,
	}
	highDemandQuota := ratelimit.Quota{
		Name:   "high_demand",
		Limit:  app.config.Quota.HighDemandLimit,
		Window: app.config.Quota.HighDemandWindow,
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		// Single-asset generation endpoints
		r.Group(func(r chi.Router) {
			r.Use(quotaMiddleware.Limit(defaultQuota))
			r.Post("/terrain/heightmap", generateHandler.Submit(generation.KindTerrain, "heightmap"))
			r.Post("/mesh/background", generateHandler.Submit(generation.KindMesh, "background"))
			r.Post("/mesh/water", generateHandler.Submit(generation.KindMesh, "water"))
			r.Post("/texture/layers", generateHandler.Submit(generation.KindTexture, "layers"))
			r.Post("/vegetation/forest", generateHandler.Submit(generation.KindVegetation, "forest"))
			r.Post("/satellite/overview", generateHandler.Submit(generation.KindSatellite, "overview"))
		})

		// Full map bundles cost far more to render, so they draw from a
		// tighter budget. No asset list: a bundle carries everything.
		r.Group(func(r chi.Router) {
			r.Use(quotaMiddleware.Limit(highDemandQuota))
			r.Post("/map/bundle", generateHandler.Submit(generation.KindBundle))
		})

		// Retrieval and introspection endpoints are authenticated but not
		// quota limited; polling is the expected access pattern.
		r.Post("/task/get", taskHandler.GetTask)
		r.Post("/providers/list", providerHandler.ListProviders)
		r.Post("/providers/info", providerHandler.GetProviderInfo)
		r.Get("/queue/status", statusHandler.QueueStatus)
	})

	// Public endpoints
	r.Post("/keys/validate", keyHandler.ValidateKey)
	r.Get("/info/version", statusHandler.Version)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	return r
}
