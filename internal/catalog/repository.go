package catalog

import (
	"context"
)

// Repository defines the interface for location storage.
type Repository interface {
	// GetByID retrieves a location by country slug and city slug.
	GetByID(ctx context.Context, countrySlug, slug string) (*Location, error)

	// GetBySlug retrieves a location by city slug alone, any country.
	// Returns ErrNotFound if no or ambiguous zero matches exist; with
	// multiple matches the alphabetically first country wins.
	GetBySlug(ctx context.Context, slug string) (*Location, error)

	// GetByOSMID retrieves a location by its external OSM identity.
	GetByOSMID(ctx context.Context, osmType string, osmID int64) (*Location, error)

	// Nearest returns the location closest to a coordinate together with
	// its distance in kilometers. ErrNotFound when the catalog is empty.
	Nearest(ctx context.Context, lat, lon float64) (*Location, float64, error)

	// SearchText returns locations whose name, region or country contains
	// the text, case-insensitive. Ranking is the service's concern.
	SearchText(ctx context.Context, text string) ([]*Location, error)

	// ListPopular returns locations flagged for proactive refresh.
	ListPopular(ctx context.Context) ([]*Location, error)

	// Upsert inserts or updates a location. OSM-derived locations conflict
	// on (osm_type, osm_id); others on (country_slug, slug). The operation
	// is atomic per record, so re-importing the same external point updates
	// rather than duplicates.
	Upsert(ctx context.Context, loc *Location) error

	// Count returns the number of locations in the catalog.
	Count(ctx context.Context) (int, error)
}
