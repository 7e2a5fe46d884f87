package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dunctk/snorkelforecast/internal/api/models"
	"github.com/dunctk/snorkelforecast/internal/api/response"
	"github.com/dunctk/snorkelforecast/internal/catalog"
	"github.com/dunctk/snorkelforecast/internal/importer"
	"github.com/dunctk/snorkelforecast/internal/worker"
)

// AdminHandler serves operational endpoints for the tile importer and the
// background refresher.
type AdminHandler struct {
	importer *importer.Service
	refresh  *worker.RefreshJob
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(importService *importer.Service, refresh *worker.RefreshJob) *AdminHandler {
	return &AdminHandler{importer: importService, refresh: refresh}
}

// EnqueueImportRegion handles POST /v1/admin/import/regions.
// It partitions the requested region into tiles and queues the new ones.
func (h *AdminHandler) EnqueueImportRegion(w http.ResponseWriter, r *http.Request) {
	var req models.ImportRegionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	box := catalog.BoundingBox{
		MinLat: req.Box.MinLat,
		MinLon: req.Box.MinLon,
		MaxLat: req.Box.MaxLat,
		MaxLon: req.Box.MaxLon,
	}
	if !box.Valid() {
		response.BadRequest(w, r, "invalid bounding box", []models.FieldError{
			{Field: "box", Message: "min must be below max and coordinates within WGS84 bounds", Code: "invalid"},
		})
		return
	}

	enqueued, err := h.importer.EnqueueRegion(r.Context(), box, req.Zoom)
	if err != nil {
		response.InternalError(w, r, "failed to enqueue region")
		return
	}

	response.Accepted(w, r, "", models.ImportRegionResponse{TilesEnqueued: enqueued})
}

// RunImportBatch handles POST /v1/admin/import/batches.
// It synchronously works through a batch of queued tiles.
func (h *AdminHandler) RunImportBatch(w http.ResponseWriter, r *http.Request) {
	var req models.ImportBatchRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, r, "invalid request body", nil)
			return
		}
	}

	result, err := h.importer.ImportNextBatch(r.Context(), req.BatchSize)
	if err != nil {
		if errors.Is(err, importer.ErrImportDisabled) {
			response.ServiceUnavailable(w, r, "tile import is disabled by feature flag")
			return
		}
		response.InternalError(w, r, "import batch failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.ImportBatchResponse{
		Claimed:   result.Claimed,
		Imported:  result.Imported,
		Failed:    result.Failed,
		Spots:     result.Spots,
		Remaining: result.Remaining,
	})
}

// TriggerRefresh handles POST /v1/admin/refresh.
// It runs one refresh pass over popular locations and reports the outcome.
func (h *AdminHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	result := h.refresh.Run(r.Context())

	response.JSON(w, r, http.StatusOK, models.RefreshResponse{
		Candidates: result.Candidates,
		Refreshed:  result.Refreshed,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
	})
}
