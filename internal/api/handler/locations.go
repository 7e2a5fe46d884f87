package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dunctk/snorkelforecast/internal/api/models"
	"github.com/dunctk/snorkelforecast/internal/api/response"
	"github.com/dunctk/snorkelforecast/internal/catalog"
)

// LocationsHandler serves catalog search and resolution endpoints.
type LocationsHandler struct {
	catalog *catalog.Service
}

// NewLocationsHandler creates a new LocationsHandler.
func NewLocationsHandler(catalogService *catalog.Service) *LocationsHandler {
	return &LocationsHandler{catalog: catalogService}
}

// SearchLocations handles GET /v1/locations/search?q=...
func (h *LocationsHandler) SearchLocations(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		response.BadRequest(w, r, "missing search query", []models.FieldError{
			{Field: "q", Message: "query parameter is required", Code: "required"},
		})
		return
	}

	groups, err := h.catalog.Search(r.Context(), query)
	if err != nil {
		response.InternalError(w, r, "search failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewSearchResponse(query, groups))
}

// ResolveLocation handles GET /v1/locations/resolve?q=...
// The query may be a "lat,lon" coordinate pair, a "country/city" id, a bare
// slug, or free text.
func (h *LocationsHandler) ResolveLocation(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		response.BadRequest(w, r, "missing resolution query", []models.FieldError{
			{Field: "q", Message: "query parameter is required", Code: "required"},
		})
		return
	}

	loc, err := h.catalog.Resolve(r.Context(), query)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			response.NotFound(w, r, "nothing in the catalog matches "+strconv.Quote(query))
			return
		}
		response.InternalError(w, r, "location resolution failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.ResolveResponse{Location: models.NewLocationSummary(loc)})
}
