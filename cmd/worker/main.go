// Package main provides the entrypoint for the SnorkelForecast background worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dunctk/snorkelforecast/internal/catalog"
	"github.com/dunctk/snorkelforecast/internal/catalog/overpass"
	"github.com/dunctk/snorkelforecast/internal/database"
	"github.com/dunctk/snorkelforecast/internal/featureflags"
	"github.com/dunctk/snorkelforecast/internal/forecast"
	"github.com/dunctk/snorkelforecast/internal/forecast/openmeteo"
	"github.com/dunctk/snorkelforecast/internal/importer"
	"github.com/dunctk/snorkelforecast/internal/provider/resilience"
	"github.com/dunctk/snorkelforecast/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "snorkelforecast-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SnorkelForecast worker")

	// Worker also exposes a health endpoint for the container platform.
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	refreshInterval := durationFromEnv("REFRESH_INTERVAL", 30*time.Minute)
	importInterval := durationFromEnv("IMPORT_INTERVAL", time.Minute)
	importBatchSize := intFromEnv("IMPORT_BATCH_SIZE", 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database; fall back to in-memory stores for local runs.
	var (
		pool        *pgxpool.Pool
		catalogRepo catalog.Repository
		tileRepo    importer.Repository
		ffRepo      featureflags.Repository
		historyRepo forecast.HistoryRepository
	)
	if os.Getenv("DB_DISABLED") == "true" {
		log.Warn().Msg("database disabled, using in-memory stores")
		catalogRepo = catalog.NewInMemoryRepository()
		tileRepo = importer.NewInMemoryRepository()
		ffRepo = featureflags.NewInMemoryRepository()
		historyRepo = forecast.NewInMemoryHistory()
	} else {
		dbConfig := database.ConfigFromEnv()
		var err error
		pool, err = database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}

		catalogRepo = catalog.NewPostgresRepository(pool)
		tileRepo = importer.NewPostgresRepository(pool)
		ffRepo = featureflags.NewPostgresRepository(pool)
		historyRepo = forecast.NewPostgresHistory(pool)
	}

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository:   ffRepo,
		Logger:       log,
		CacheTTL:     1 * time.Minute,
		DefaultFlags: featureflags.DefaultFlags(),
	})

	if err := catalog.EnsureSeeded(ctx, catalogRepo); err != nil {
		log.Fatal().Err(err).Msg("failed to seed location catalog")
	}

	// Upstream clients behind circuit breakers.
	marineHTTP := resilience.NewClient(resilience.ClientConfig{Name: openmeteo.MarineProviderName})
	weatherHTTP := resilience.NewClient(resilience.ClientConfig{Name: openmeteo.WeatherProviderName})
	overpassHTTP := resilience.NewClient(resilience.ClientConfig{Name: overpass.ProviderName, Timeout: 30 * time.Second})

	marineClient := openmeteo.NewMarineClient(openmeteo.ClientConfig{HTTPClient: marineHTTP, Logger: log})
	weatherClient := openmeteo.NewWeatherClient(openmeteo.ClientConfig{HTTPClient: weatherHTTP, Logger: log})
	overpassClient := overpass.NewClient(overpass.ClientConfig{HTTPClient: overpassHTTP, Logger: log})

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

	importService := importer.NewService(importer.ServiceConfig{
		Tiles:   tileRepo,
		Catalog: catalogRepo,
		Geo:     overpassClient,
		Logger:  log,
		Flags:   ffService,
	})

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  worker.DefaultRefreshConfig(),
		Logger:  log,
		Catalog: catalogRepo,
		Cache:   cache,
		Flags:   ffService,
	})

	// Schedule the periodic jobs.
	scheduler := gocron.NewScheduler(time.UTC)

	if _, err := scheduler.Every(refreshInterval).Do(func() {
		result := refreshJob.Run(ctx)
		log.Info().
			Int("candidates", result.Candidates).
			Int("refreshed", result.Refreshed).
			Int("failed", result.Failed).
			Msg("scheduled forecast refresh finished")
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule refresh job")
	}

	if _, err := scheduler.Every(importInterval).Do(func() {
		result, err := importService.ImportNextBatch(ctx, importBatchSize)
		if err != nil {
			log.Warn().Err(err).Msg("scheduled import batch failed")
			return
		}
		if result.Claimed > 0 {
			log.Info().
				Int("claimed", result.Claimed).
				Int("imported", result.Imported).
				Int("spots", result.Spots).
				Int("remaining", result.Remaining).
				Msg("scheduled import batch finished")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule import job")
	}

	if _, err := scheduler.Every(24 * time.Hour).Do(func() {
		if evicted := cache.EvictIdle(); evicted > 0 {
			log.Info().Int("evicted", evicted).Msg("evicted idle forecast entries")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule eviction job")
	}

	scheduler.StartAsync()
	log.Info().
		Dur("refresh_interval", refreshInterval).
		Dur("import_interval", importInterval).
		Msg("scheduler started")

	// Optionally consume on-demand jobs from Pub/Sub.
	if subscription := os.Getenv("PUBSUB_SUBSCRIPTION"); subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        os.Getenv("PUBSUB_PROJECT_ID"),
			SubscriptionName: subscription,
			RefreshJob:       refreshJob,
			ImportService:    importService,
			ImportBatchSize:  importBatchSize,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub handler")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Health check server.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":%q}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intFromEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
