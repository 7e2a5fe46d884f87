// Package catalog maintains the location catalog: canonical snorkeling
// locations grouped by country, resolvable by slug, coordinates or free text,
// and lazily grown from OpenStreetMap data.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no catalog entry matches a resolution query.
// It is a legitimate outcome, not a fault.
var ErrNotFound = errors.New("location not found")

// Provenance records how a location entered the catalog.
type Provenance string

const (
	// ProvenanceSeeded locations ship with the application.
	ProvenanceSeeded Provenance = "seeded"

	// ProvenanceOSM locations were imported from OpenStreetMap, either by
	// the tile importer or an on-demand lookup.
	ProvenanceOSM Provenance = "osm-imported"

	// ProvenanceUserResolved locations were created ad hoc from a raw
	// coordinate query.
	ProvenanceUserResolved Provenance = "user-resolved"
)

// Location is one canonical snorkeling location.
// Locations are created once and never deleted by the core; only display
// metadata is corrected after creation.
type Location struct {
	// Slug is the city-level identifier, unique within a country.
	Slug string `json:"slug"`

	// CountrySlug is the grouping key.
	CountrySlug string `json:"country_slug"`

	Name    string `json:"name"`
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Timezone is an IANA zone name for local display.
	Timezone    string `json:"timezone,omitempty"`
	Description string `json:"description,omitempty"`

	Provenance Provenance `json:"provenance"`

	// OSM identity, the external id for idempotent upserts.
	// Zero OSMID means the location did not come from OSM.
	OSMType string `json:"osm_type,omitempty"`
	OSMID   int64  `json:"osm_id,omitempty"`

	// Confidence is a 0-1 snorkeling-suitability estimate from OSM tags.
	Confidence float64 `json:"confidence,omitempty"`

	// Popular locations are proactively refreshed by the background worker.
	Popular bool `json:"popular"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ID returns the canonical "country/city" identifier.
func (l *Location) ID() string {
	return l.CountrySlug + "/" + l.Slug
}

// BoundingBox is a geographic box in WGS84 degrees.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Valid reports whether the box has positive extent and sane coordinates.
func (b BoundingBox) Valid() bool {
	return b.MinLat < b.MaxLat && b.MinLon < b.MaxLon &&
		b.MinLat >= -90 && b.MaxLat <= 90 &&
		b.MinLon >= -180 && b.MaxLon <= 180
}

// Overlaps reports whether two boxes intersect.
func (b BoundingBox) Overlaps(o BoundingBox) bool {
	return b.MinLat < o.MaxLat && b.MaxLat > o.MinLat &&
		b.MinLon < o.MaxLon && b.MaxLon > o.MinLon
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// GeoPoint is a point of interest from the external geographic dataset.
type GeoPoint struct {
	OSMType  string
	OSMID    int64
	Name     string
	Lat      float64
	Lon      float64
	Category string
	Country  string
	Region   string
	Tags     map[string]string
}

// GeoDataset is the external geographic data source (Overpass/OSM).
type GeoDataset interface {
	// SearchByName finds snorkeling-relevant points matching a name.
	SearchByName(ctx context.Context, name string, limit int) ([]GeoPoint, error)

	// PointsInBBox finds snorkeling-relevant points inside a bounding box.
	PointsInBBox(ctx context.Context, box BoundingBox) ([]GeoPoint, error)

	// Name returns the dataset name for logging.
	Name() string
}
