// Package api provides the HTTP API for SnorkelForecast.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dunctk/snorkelforecast/internal/api/handler"
	"github.com/dunctk/snorkelforecast/internal/api/middleware"
	"github.com/dunctk/snorkelforecast/internal/catalog"
	"github.com/dunctk/snorkelforecast/internal/forecast"
	"github.com/dunctk/snorkelforecast/internal/importer"
	"github.com/dunctk/snorkelforecast/internal/worker"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	CatalogService *catalog.Service
	ForecastCache  *forecast.Cache
	ImportService  *importer.Service
	RefreshJob     *worker.RefreshJob
	Ops            handler.OpsConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "snorkelforecast-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	ops := cfg.Ops
	if ops.Version == "" {
		ops.Version = cfg.Version
	}
	if ops.BuildTime == "" {
		ops.BuildTime = cfg.BuildTime
	}
	opsHandler := handler.NewOpsHandler(ops)
	forecastHandler := handler.NewForecastHandler(cfg.CatalogService, cfg.ForecastCache)
	locationsHandler := handler.NewLocationsHandler(cfg.CatalogService)
	adminHandler := handler.NewAdminHandler(cfg.ImportService, cfg.RefreshJob)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(ops.Flags)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Forecast endpoint - fans out to upstream providers on a cold cache
		r.With(standardRateLimit).Get("/forecast/{country}/{city}", forecastHandler.GetForecast)

		// Catalog endpoints
		r.Route("/locations", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/search", locationsHandler.SearchLocations)
			// Resolution can reach out to the geographic dataset
			r.With(expensiveRateLimit).Get("/resolve", locationsHandler.ResolveLocation)
		})

		// Admin endpoints - for internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(expensiveRateLimit)

			r.Route("/import", func(r chi.Router) {
				r.Post("/regions", adminHandler.EnqueueImportRegion)
				r.Post("/batches", adminHandler.RunImportBatch)
			})
			r.Post("/refresh", adminHandler.TriggerRefresh)

			// Feature flags management
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
