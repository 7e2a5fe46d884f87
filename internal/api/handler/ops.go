package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dunctk/snorkelforecast/internal/api/models"
	"github.com/dunctk/snorkelforecast/internal/api/response"
	"github.com/dunctk/snorkelforecast/internal/featureflags"
	"github.com/dunctk/snorkelforecast/internal/forecast"
	"github.com/dunctk/snorkelforecast/internal/importer"
	"github.com/dunctk/snorkelforecast/internal/provider/resilience"
	"github.com/dunctk/snorkelforecast/internal/worker"
)

// OpsConfig holds the dependencies surfaced by the operational endpoints.
// Everything except Version is optional; absent subsystems are omitted from
// the status report.
type OpsConfig struct {
	Version   string
	BuildTime string

	// ReadyCheck verifies hard dependencies (the database) for readiness.
	ReadyCheck func(ctx context.Context) error

	Registry *resilience.Registry
	Cache    *forecast.Cache
	Refresh  *worker.RefreshJob
	Importer *importer.Service
	Flags    *featureflags.Service
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.cfg.ReadyCheck != nil {
		if err := h.cfg.ReadyCheck(r.Context()); err != nil {
			response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
				Status: models.HealthStatusFail,
				Time:   models.Timestamp(time.Now()),
				Details: map[string]interface{}{
					"error": err.Error(),
				},
			})
			return
		}
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.HealthAll() {
			ps := models.ProviderStatus{
				Provider: ph.Name,
				Status:   models.HealthStatusOK,
				State:    ph.State,
				Requests: ph.Requests,
				Failures: ph.Failures,
			}
			if !ph.Healthy() {
				ps.Status = models.HealthStatusDegraded
				status.Status = models.HealthStatusDegraded
			}
			status.Providers = append(status.Providers, ps)
		}
	}

	if h.cfg.Cache != nil {
		stats := h.cfg.Cache.CacheStats()
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "forecast-cache",
			Status: models.HealthStatusOK,
			Detail: map[string]interface{}{
				"entries":      stats.Entries,
				"freshEntries": stats.FreshEntries,
			},
		})
	}

	if h.cfg.Refresh != nil {
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "background-refresh",
			Status: models.HealthStatusOK,
			Detail: h.cfg.Refresh.MetricsSnapshot(),
		})
	}

	if h.cfg.Importer != nil {
		counts, err := h.cfg.Importer.Status(r.Context())
		sub := models.SubsystemStatus{Name: "tile-importer", Status: models.HealthStatusOK}
		if err != nil {
			sub.Status = models.HealthStatusDegraded
			sub.Detail = map[string]interface{}{"error": err.Error()}
			status.Status = models.HealthStatusDegraded
		} else {
			sub.Detail = map[string]interface{}{
				"pending":    counts.Pending,
				"inProgress": counts.InProgress,
				"done":       counts.Done,
				"failed":     counts.Failed,
			}
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.cfg.Flags != nil {
		status.ActiveDegradationFlags = activeDegradationFlags(r.Context(), h.cfg.Flags)
	}

	response.JSON(w, r, http.StatusOK, status)
}

// activeDegradationFlags lists the enabled flags that degrade service.
func activeDegradationFlags(ctx context.Context, flags *featureflags.Service) []string {
	var active []string
	for _, key := range []string{
		featureflags.FlagCachedOnlyForecasts,
		featureflags.FlagDisableOSMLookup,
		featureflags.FlagDisableBackgroundRefresh,
		featureflags.FlagDisableTileImport,
	} {
		if flags.IsEnabled(ctx, key) {
			active = append(active, key)
		}
	}
	return active
}
