// Package main provides the entrypoint for the SnorkelForecast API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dunctk/snorkelforecast/internal/api"
	"github.com/dunctk/snorkelforecast/internal/api/handler"
	"github.com/dunctk/snorkelforecast/internal/api/middleware"
	"github.com/dunctk/snorkelforecast/internal/catalog"
	"github.com/dunctk/snorkelforecast/internal/catalog/overpass"
	"github.com/dunctk/snorkelforecast/internal/database"
	"github.com/dunctk/snorkelforecast/internal/featureflags"
	"github.com/dunctk/snorkelforecast/internal/forecast"
	"github.com/dunctk/snorkelforecast/internal/forecast/openmeteo"
	"github.com/dunctk/snorkelforecast/internal/importer"
	"github.com/dunctk/snorkelforecast/internal/provider/resilience"
	"github.com/dunctk/snorkelforecast/internal/telemetry"
	"github.com/dunctk/snorkelforecast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "snorkelforecast-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SnorkelForecast API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database; fall back to in-memory stores for local runs
	// without one.
	var (
		pool        *pgxpool.Pool
		catalogRepo catalog.Repository
		tileRepo    importer.Repository
		ffRepo      featureflags.Repository
		historyRepo forecast.HistoryRepository
		readyCheck  func(ctx context.Context) error
	)
	if os.Getenv("DB_DISABLED") == "true" {
		log.Warn().Msg("database disabled, using in-memory stores")
		catalogRepo = catalog.NewInMemoryRepository()
		tileRepo = importer.NewInMemoryRepository()
		ffRepo = featureflags.NewInMemoryRepository()
		historyRepo = forecast.NewInMemoryHistory()
	} else {
		dbConfig := database.ConfigFromEnv()
		pool, err = database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		catalogRepo = catalog.NewPostgresRepository(pool)
		tileRepo = importer.NewPostgresRepository(pool)
		ffRepo = featureflags.NewPostgresRepository(pool)
		historyRepo = forecast.NewPostgresHistory(pool)
		readyCheck = pool.Ping
	}

	// Initialize feature flags service
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository:   ffRepo,
		Logger:       log,
		CacheTTL:     1 * time.Minute,
		DefaultFlags: featureflags.DefaultFlags(),
	})
	log.Info().Msg("feature flags service initialized")

	// Initialize upstream provider clients behind circuit breakers
	registry := resilience.NewRegistry()

	marineHTTP := resilience.NewClient(resilience.ClientConfig{Name: openmeteo.MarineProviderName})
	weatherHTTP := resilience.NewClient(resilience.ClientConfig{Name: openmeteo.WeatherProviderName})
	overpassHTTP := resilience.NewClient(resilience.ClientConfig{Name: overpass.ProviderName, Timeout: 30 * time.Second})
	registry.Register(marineHTTP)
	registry.Register(weatherHTTP)
	registry.Register(overpassHTTP)

	marineClient := openmeteo.NewMarineClient(openmeteo.ClientConfig{HTTPClient: marineHTTP, Logger: log})
	weatherClient := openmeteo.NewWeatherClient(openmeteo.ClientConfig{HTTPClient: weatherHTTP, Logger: log})
	overpassClient := overpass.NewClient(overpass.ClientConfig{HTTPClient: overpassHTTP, Logger: log})

	// Initialize catalog service and seed the built-in locations
	catalogService := catalog.NewService(catalog.ServiceConfig{
		Repository: catalogRepo,
		Geo:        overpassClient,
		Logger:     log,
		Flags:      ffService,
	})
	if err := catalog.EnsureSeeded(ctx, catalogRepo); err != nil {
		log.Fatal().Err(err).Msg("failed to seed location catalog")
	}
	log.Info().Msg("catalog service initialized")

	// Initialize forecast pipeline
	fetcher := forecast.NewFetcher(forecast.FetcherConfig{
		Marine:  marineClient,
		Weather: weatherClient,
		Logger:  log,
	})
	cache := forecast.NewCache(forecast.CacheConfig{
		Fetcher: fetcher,
		Logger:  log,
		Flags:   ffService,
		History: historyRepo,
	})
	log.Info().Msg("forecast cache initialized")

	// Initialize tile import service
	importService := importer.NewService(importer.ServiceConfig{
		Tiles:   tileRepo,
		Catalog: catalogRepo,
		Geo:     overpassClient,
		Logger:  log,
		Flags:   ffService,
	})

	// Refresh job backs the manual /v1/admin/refresh endpoint; the worker
	// binary runs it on a schedule.
	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  worker.DefaultRefreshConfig(),
		Logger:  log,
		Catalog: catalogRepo,
		Cache:   cache,
		Flags:   ffService,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		CatalogService: catalogService,
		ForecastCache:  cache,
		ImportService:  importService,
		RefreshJob:     refreshJob,
		Ops: handler.OpsConfig{
			ReadyCheck: readyCheck,
			Registry:   registry,
			Cache:      cache,
			Refresh:    refreshJob,
			Importer:   importService,
			Flags:      ffService,
		},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
