package catalog

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Used in tests and for running without a database.
type InMemoryRepository struct {
	mu        sync.RWMutex
	locations map[string]*Location // keyed by country/city id
	byOSM     map[string]string    // osm key -> id
}

// NewInMemoryRepository creates a new in-memory location repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		locations: make(map[string]*Location),
		byOSM:     make(map[string]string),
	}
}

func osmKey(osmType string, osmID int64) string {
	return osmType + ":" + strconv.FormatInt(osmID, 10)
}

// GetByID retrieves a location by country slug and city slug.
func (r *InMemoryRepository) GetByID(_ context.Context, countrySlug, slug string) (*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.locations[countrySlug+"/"+slug]
	if !ok {
		return nil, ErrNotFound
	}
	cpy := *l
	return &cpy, nil
}

// GetBySlug retrieves a location by city slug alone.
func (r *InMemoryRepository) GetBySlug(_ context.Context, slug string) (*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Location
	for _, l := range r.locations {
		if l.Slug == slug {
			matches = append(matches, l)
		}
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CountrySlug < matches[j].CountrySlug })
	cpy := *matches[0]
	return &cpy, nil
}

// GetByOSMID retrieves a location by its external OSM identity.
func (r *InMemoryRepository) GetByOSMID(_ context.Context, osmType string, osmID int64) (*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOSM[osmKey(osmType, osmID)]
	if !ok {
		return nil, ErrNotFound
	}
	cpy := *r.locations[id]
	return &cpy, nil
}

// Nearest returns the closest location and its distance in kilometers.
func (r *InMemoryRepository) Nearest(_ context.Context, lat, lon float64) (*Location, float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Location
	bestDist := math.MaxFloat64
	for _, l := range r.locations {
		d := distanceKm(lat, lon, l.Lat, l.Lon)
		if d < bestDist {
			best, bestDist = l, d
		}
	}
	if best == nil {
		return nil, 0, ErrNotFound
	}
	cpy := *best
	return &cpy, bestDist, nil
}

// SearchText returns locations matching text in name, region or country.
func (r *InMemoryRepository) SearchText(_ context.Context, text string) ([]*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(text))
	var out []*Location
	for _, l := range r.locations {
		if strings.Contains(strings.ToLower(l.Name), needle) ||
			strings.Contains(strings.ToLower(l.Region), needle) ||
			strings.Contains(strings.ToLower(l.Country), needle) {
			cpy := *l
			out = append(out, &cpy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// ListPopular returns locations flagged for proactive refresh.
func (r *InMemoryRepository) ListPopular(_ context.Context) ([]*Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Location
	for _, l := range r.locations {
		if l.Popular {
			cpy := *l
			out = append(out, &cpy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Upsert inserts or updates a location.
func (r *InMemoryRepository) Upsert(_ context.Context, loc *Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	// OSM identity takes precedence so re-imports update in place even when
	// the derived slug changed.
	if loc.OSMID != 0 {
		if id, ok := r.byOSM[osmKey(loc.OSMType, loc.OSMID)]; ok {
			existing := r.locations[id]
			cpy := *loc
			cpy.CreatedAt = existing.CreatedAt
			cpy.UpdatedAt = now
			delete(r.locations, id)
			r.locations[cpy.ID()] = &cpy
			r.byOSM[osmKey(loc.OSMType, loc.OSMID)] = cpy.ID()
			return nil
		}
	}

	cpy := *loc
	if existing, ok := r.locations[cpy.ID()]; ok {
		cpy.CreatedAt = existing.CreatedAt
	} else {
		cpy.CreatedAt = now
	}
	cpy.UpdatedAt = now
	r.locations[cpy.ID()] = &cpy
	if cpy.OSMID != 0 {
		r.byOSM[osmKey(cpy.OSMType, cpy.OSMID)] = cpy.ID()
	}
	return nil
}

// Count returns the number of locations.
func (r *InMemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.locations), nil
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)

// distanceKm computes the haversine distance between two coordinates.
func distanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
