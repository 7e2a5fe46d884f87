// Package handler provides HTTP handlers for the SnorkelForecast API.
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dunctk/snorkelforecast/internal/api/models"
	"github.com/dunctk/snorkelforecast/internal/api/response"
	"github.com/dunctk/snorkelforecast/internal/catalog"
	"github.com/dunctk/snorkelforecast/internal/forecast"
)

// ForecastHandler serves classified forecast timelines.
type ForecastHandler struct {
	catalog *catalog.Service
	cache   *forecast.Cache
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(catalogService *catalog.Service, cache *forecast.Cache) *ForecastHandler {
	return &ForecastHandler{catalog: catalogService, cache: cache}
}

// GetForecast handles GET /v1/forecast/{country}/{city}.
func (h *ForecastHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")
	city := chi.URLParam(r, "city")

	loc, err := h.catalog.Resolve(r.Context(), country+"/"+city)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			response.NotFound(w, r, "no such location: "+country+"/"+city)
			return
		}
		response.InternalError(w, r, "location resolution failed")
		return
	}

	snap, err := h.cache.Get(r.Context(), loc.ID(), loc.Lat, loc.Lon)
	if err != nil {
		writeFetchProblem(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewForecastResponse(models.NewLocationSummary(loc), snap))
}

// writeFetchProblem maps upstream fetch failures to problem responses.
// These errors only surface when there is no cached snapshot to degrade to.
func writeFetchProblem(w http.ResponseWriter, r *http.Request, err error) {
	fe := forecast.AsFetchError(err)
	if fe == nil {
		response.InternalError(w, r, "forecast unavailable")
		return
	}

	switch fe.Kind {
	case forecast.FetchTimeout:
		response.ServiceUnavailable(w, r, "upstream forecast provider timed out")
	case forecast.FetchMalformed:
		response.ServiceUnavailable(w, r, "upstream forecast provider returned an unreadable response")
	default:
		response.ServiceUnavailable(w, r, "upstream forecast provider is unavailable")
	}
}
