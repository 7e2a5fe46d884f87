package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunctk/snorkelforecast/internal/api"
	"github.com/dunctk/snorkelforecast/internal/api/handler"
	"github.com/dunctk/snorkelforecast/internal/api/models"
	"github.com/dunctk/snorkelforecast/internal/catalog"
	"github.com/dunctk/snorkelforecast/internal/featureflags"
	"github.com/dunctk/snorkelforecast/internal/forecast"
	"github.com/dunctk/snorkelforecast/internal/importer"
	"github.com/dunctk/snorkelforecast/internal/worker"
)

// stubFetcher returns a fixed calm snapshot for every location.
type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, _, _ float64) (*forecast.Snapshot, error) {
	now := time.Now().UTC().Truncate(time.Hour)
	wave, wind, sst := 0.1, 2.0, 25.0
	var hours []forecast.HourlyRecord
	for i := 0; i < 6; i++ {
		hours = append(hours, forecast.HourlyRecord{
			Time:           now.Add(time.Duration(i) * time.Hour),
			WaveHeight:     &wave,
			WindSpeed:      &wind,
			SeaSurfaceTemp: &sst,
			Suitable:       true,
			Score:          0.9,
			Daylight:       true,
		})
	}
	return &forecast.Snapshot{Hours: hours, FetchedAt: time.Now(), State: forecast.StateFresh}, nil
}

// stubGeo satisfies the geographic dataset without network access.
type stubGeo struct{}

func (stubGeo) SearchByName(_ context.Context, _ string, _ int) ([]catalog.GeoPoint, error) {
	return nil, nil
}

func (stubGeo) PointsInBBox(_ context.Context, _ catalog.BoundingBox) ([]catalog.GeoPoint, error) {
	return nil, nil
}

func (stubGeo) Name() string { return "stub-geo" }

type testEnv struct {
	router http.Handler
	flags  *featureflags.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	flagService := featureflags.NewService(featureflags.ServiceConfig{
		Repository:   featureflags.NewInMemoryRepository(),
		Logger:       logger,
		DefaultFlags: featureflags.DefaultFlags(),
	})

	catalogRepo := catalog.NewInMemoryRepository()
	require.NoError(t, catalog.EnsureSeeded(context.Background(), catalogRepo))

	catalogService := catalog.NewService(catalog.ServiceConfig{
		Repository: catalogRepo,
		Geo:        stubGeo{},
		Logger:     logger,
		Flags:      flagService,
	})

	cache := forecast.NewCache(forecast.CacheConfig{
		Fetcher: stubFetcher{},
		Logger:  logger,
		Flags:   flagService,
	})

	importService := importer.NewService(importer.ServiceConfig{
		Tiles:   importer.NewInMemoryRepository(),
		Catalog: catalogRepo,
		Geo:     stubGeo{},
		Logger:  logger,
		Flags:   flagService,
	})

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:  worker.DefaultRefreshConfig(),
		Logger:  logger,
		Catalog: catalogRepo,
		Cache:   cache,
		Flags:   flagService,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:        "test",
		BuildTime:      "2026-01-01T00:00:00Z",
		Logger:         logger,
		CatalogService: catalogService,
		ForecastCache:  cache,
		ImportService:  importService,
		RefreshJob:     refreshJob,
		Ops: handler.OpsConfig{
			Cache:    cache,
			Refresh:  refreshJob,
			Importer: importService,
			Flags:    flagService,
		},
	})

	return &testEnv{router: router, flags: flagService}
}

func (e *testEnv) do(method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/ops/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestReadyEndpointFailsWhenDependencyDown(t *testing.T) {
	logger := zerolog.New(io.Discard)
	router := api.NewRouter(api.RouterConfig{
		Version: "test",
		Logger:  logger,
		Ops: handler.OpsConfig{
			ReadyCheck: func(context.Context) error { return errors.New("database unreachable") },
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusFail, health.Status)
}

func TestStatusEndpointReportsSubsystems(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/ops/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)

	names := make([]string, 0, len(status.Subsystems))
	for _, s := range status.Subsystems {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "forecast-cache")
	assert.Contains(t, names, "background-refresh")
	assert.Contains(t, names, "tile-importer")
	assert.Empty(t, status.ActiveDegradationFlags)
}

func TestForecastEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/forecast/spain/carboneras", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "spain/carboneras", resp.Location.ID)
	assert.Equal(t, "fresh", resp.State)
	require.NotEmpty(t, resp.Hours)
	assert.Equal(t, len(resp.Hours), resp.SuitableHours)
}

func TestForecastEndpointUnknownLocation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/forecast/atlantis/reef", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
	assert.Equal(t, "/v1/forecast/atlantis/reef", problem.Instance)
}

func TestLocationSearch(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/locations/search?q=carboneras", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, "Spain", resp.Groups[0].Country)
	require.NotEmpty(t, resp.Groups[0].Locations)
	assert.Equal(t, "carboneras", resp.Groups[0].Locations[0].Slug)
}

func TestLocationSearchRequiresQuery(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/locations/search", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "q", problem.Errors[0].Field)
}

func TestResolveLocationByCoordinate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/locations/resolve?q=36.998,-1.895", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ResolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "spain/carboneras", resp.Location.ID)
}

func TestAdminImportRegion(t *testing.T) {
	env := newTestEnv(t)

	body, err := json.Marshal(models.ImportRegionRequest{
		Box: models.GeoBox{MinLat: 36.9, MinLon: -2.0, MaxLat: 37.1, MaxLon: -1.8},
	})
	require.NoError(t, err)

	rec := env.do(http.MethodPost, "/v1/admin/import/regions", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp models.ImportRegionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Positive(t, resp.TilesEnqueued)

	// The same region again enqueues nothing new.
	rec = env.do(http.MethodPost, "/v1/admin/import/regions", body)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.TilesEnqueued)
}

func TestAdminImportRegionRejectsInvalidBox(t *testing.T) {
	env := newTestEnv(t)

	body, err := json.Marshal(models.ImportRegionRequest{
		Box: models.GeoBox{MinLat: 37.1, MinLon: -1.8, MaxLat: 36.9, MaxLon: -2.0},
	})
	require.NoError(t, err)

	rec := env.do(http.MethodPost, "/v1/admin/import/regions", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminImportBatch(t *testing.T) {
	env := newTestEnv(t)

	body, err := json.Marshal(models.ImportRegionRequest{
		Box: models.GeoBox{MinLat: 36.9, MinLon: -2.0, MaxLat: 37.1, MaxLon: -1.8},
	})
	require.NoError(t, err)
	rec := env.do(http.MethodPost, "/v1/admin/import/regions", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(http.MethodPost, "/v1/admin/import/batches", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ImportBatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Positive(t, resp.Claimed)
	assert.Zero(t, resp.Failed)
}

func TestAdminRefresh(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/admin/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Positive(t, resp.Candidates)
	assert.Equal(t, resp.Candidates, resp.Refreshed)
	assert.Zero(t, resp.Failed)
}

func TestFeatureFlagRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/admin/feature-flags/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list featureflags.FlagList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 4)

	body, err := json.Marshal(featureflags.FlagUpdateRequest{
		Updates: []featureflags.FlagUpdate{
			{Key: featureflags.FlagCachedOnlyForecasts, Value: true},
		},
		Reason: "incident mitigation",
	})
	require.NoError(t, err)

	rec = env.do(http.MethodPut, "/v1/admin/feature-flags/", body)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/v1/ops/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status.ActiveDegradationFlags, featureflags.FlagCachedOnlyForecasts)
}

func TestFeatureFlagUpsertRejectsEmptyBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/v1/admin/feature-flags/", []byte(`{"updates":[]}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/ops/health", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
