package handler

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/dunctk/snorkelforecast/internal/api/models"
	"github.com/dunctk/snorkelforecast/internal/api/response"
	"github.com/dunctk/snorkelforecast/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags - list all feature flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	flags := h.service.GetAllFlags(r.Context())

	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(flags))}
	for _, flag := range flags {
		list.Items = append(list.Items, *flag)
	}
	sort.Slice(list.Items, func(i, j int) bool {
		return list.Items[i].Key < list.Items[j].Key
	})

	response.JSON(w, r, http.StatusOK, list)
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags - update feature flags.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}
	if len(req.Updates) == 0 {
		response.BadRequest(w, r, "no updates provided", []models.FieldError{
			{Field: "updates", Message: "at least one update is required", Code: "required"},
		})
		return
	}

	now := time.Now()
	flags := make([]*featureflags.Flag, 0, len(req.Updates))
	for _, u := range req.Updates {
		if u.Key == "" {
			response.BadRequest(w, r, "flag key must not be empty", []models.FieldError{
				{Field: "updates.key", Message: "key is required", Code: "required"},
			})
			return
		}
		flags = append(flags, &featureflags.Flag{Key: u.Key, Value: u.Value, UpdatedAt: now})
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		response.InternalError(w, r, "failed to update feature flags")
		return
	}

	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
