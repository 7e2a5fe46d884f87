package models

import "github.com/dunctk/snorkelforecast/internal/catalog"

// LocationSummary is the API representation of a catalog location.
type LocationSummary struct {
	ID          string  `json:"id"`
	Slug        string  `json:"slug"`
	CountrySlug string  `json:"countrySlug"`
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	Region      string  `json:"region,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone,omitempty"`
	Description string  `json:"description,omitempty"`
	Provenance  string  `json:"provenance"`
	Confidence  float64 `json:"confidence,omitempty"`
	Popular     bool    `json:"popular"`
}

// NewLocationSummary converts a catalog location to its API form.
func NewLocationSummary(l *catalog.Location) LocationSummary {
	return LocationSummary{
		ID:          l.ID(),
		Slug:        l.Slug,
		CountrySlug: l.CountrySlug,
		Name:        l.Name,
		Country:     l.Country,
		Region:      l.Region,
		Lat:         l.Lat,
		Lon:         l.Lon,
		Timezone:    l.Timezone,
		Description: l.Description,
		Provenance:  string(l.Provenance),
		Confidence:  l.Confidence,
		Popular:     l.Popular,
	}
}

// CountryGroup is one country's slice of search results.
type CountryGroup struct {
	Country   string            `json:"country"`
	Locations []LocationSummary `json:"locations"`
}

// SearchResponse groups matching locations by country.
type SearchResponse struct {
	Query  string         `json:"query"`
	Groups []CountryGroup `json:"groups"`
}

// NewSearchResponse converts grouped catalog search results to their API form.
func NewSearchResponse(query string, groups []catalog.Group) SearchResponse {
	resp := SearchResponse{Query: query, Groups: []CountryGroup{}}
	for _, g := range groups {
		cg := CountryGroup{Country: g.Country}
		for _, l := range g.Locations {
			cg.Locations = append(cg.Locations, NewLocationSummary(l))
		}
		resp.Groups = append(resp.Groups, cg)
	}
	return resp
}

// ResolveResponse is the result of resolving a free-form location query.
type ResolveResponse struct {
	Location LocationSummary `json:"location"`
}
