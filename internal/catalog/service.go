package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Flags exposes the runtime switches the resolver consults.
type Flags interface {
	// OSMLookupDisabled reports whether on-demand geographic lookups are
	// suspended.
	OSMLookupDisabled(ctx context.Context) bool
}

// ServiceConfig holds configuration for the catalog service.
type ServiceConfig struct {
	// Repository is the location store (required).
	Repository Repository

	// Geo is the external geographic dataset for lazy lookups (optional).
	Geo GeoDataset

	// Logger for service operations.
	Logger zerolog.Logger

	// Flags for runtime switches (optional).
	Flags Flags

	// NearbyRadiusKm is the tolerance for coordinate resolution
	// (default: 5 km). Beyond it a coordinate query becomes a new ad-hoc
	// location.
	NearbyRadiusKm float64
}

// Service resolves location queries against the catalog and lazily expands
// it from the external geographic dataset.
type Service struct {
	repo         Repository
	geo          GeoDataset
	logger       zerolog.Logger
	flags        Flags
	nearbyRadius float64
}

// NewService creates a new catalog service.
func NewService(cfg ServiceConfig) *Service {
	radius := cfg.NearbyRadiusKm
	if radius == 0 {
		radius = 5
	}

	return &Service{
		repo:         cfg.Repository,
		geo:          cfg.Geo,
		logger:       cfg.Logger,
		flags:        cfg.Flags,
		nearbyRadius: radius,
	}
}

// Group is a set of search results sharing a country.
type Group struct {
	Country   string      `json:"country"`
	Locations []*Location `json:"locations"`
}

// Resolve maps a query to a catalog location. The query may be a
// "country/city" id, a bare city slug, a "lat,lon" pair, or free text.
// Returns ErrNotFound when nothing in the catalog or the external dataset
// matches.
func (s *Service) Resolve(ctx context.Context, query string) (*Location, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrNotFound
	}

	if lat, lon, ok := parseCoordinates(q); ok {
		return s.resolveCoordinate(ctx, lat, lon)
	}

	if country, city, ok := strings.Cut(q, "/"); ok {
		return s.repo.GetByID(ctx, Slugify(country), Slugify(city))
	}

	if loc, err := s.repo.GetBySlug(ctx, Slugify(q)); err == nil {
		return loc, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Free text: a search hit short-circuits the lazy lookup only on an
	// exact or prefix name match. A bare substring hit is too weak a
	// signal, so the external dataset gets a chance to produce a better
	// one first, with the substring hit kept as the fallback.
	groups, err := s.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	var weakHit *Location
	if len(groups) > 0 && len(groups[0].Locations) > 0 {
		top := groups[0].Locations[0]
		if matchRank(top, strings.ToLower(q)) >= rankNamePrefix {
			return top, nil
		}
		weakHit = top
	}

	loc, err := s.lazyLookup(ctx, q)
	if err == nil {
		return loc, nil
	}
	if weakHit != nil && errors.Is(err, ErrNotFound) {
		return weakHit, nil
	}
	return nil, err
}

// resolveCoordinate finds the nearest catalog entry within the tolerance
// radius, or registers a new ad-hoc location at the rounded coordinate.
func (s *Service) resolveCoordinate(ctx context.Context, lat, lon float64) (*Location, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrNotFound
	}

	loc, dist, err := s.repo.Nearest(ctx, lat, lon)
	if err == nil && dist <= s.nearbyRadius {
		return loc, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	adhoc := &Location{
		Slug:        Slugify(fmt.Sprintf("%.3f %.3f", lat, lon)),
		CountrySlug: "ad-hoc",
		Name:        fmt.Sprintf("%.3f, %.3f", lat, lon),
		Country:     "Ad hoc",
		Lat:         lat,
		Lon:         lon,
		Provenance:  ProvenanceUserResolved,
	}
	if err := s.repo.Upsert(ctx, adhoc); err != nil {
		return nil, err
	}

	s.logger.Info().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("id", adhoc.ID()).
		Msg("registered ad-hoc location from coordinate query")

	return s.repo.GetByID(ctx, adhoc.CountrySlug, adhoc.Slug)
}

// lazyLookup queries the external dataset for a single name and persists the
// best hit, keeping the catalog self-expanding without bulk imports.
func (s *Service) lazyLookup(ctx context.Context, query string) (*Location, error) {
	if s.geo == nil {
		return nil, ErrNotFound
	}
	if s.flags != nil && s.flags.OSMLookupDisabled(ctx) {
		return nil, ErrNotFound
	}

	points, err := s.geo.SearchByName(ctx, query, 5)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("on-demand geographic lookup failed")
		return nil, ErrNotFound
	}
	if len(points) == 0 {
		return nil, ErrNotFound
	}

	best := points[0]
	bestScore := SnorkelConfidence(best.Tags)
	for _, p := range points[1:] {
		if score := SnorkelConfidence(p.Tags); score > bestScore {
			best, bestScore = p, score
		}
	}

	loc := LocationFromGeoPoint(best)
	if err := s.repo.Upsert(ctx, loc); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("query", query).
		Str("id", loc.ID()).
		Float64("confidence", loc.Confidence).
		Msg("catalog expanded from on-demand lookup")

	return s.repo.GetByOSMID(ctx, loc.OSMType, loc.OSMID)
}

// Search performs case-insensitive matching against name, region and country
// fields. Results are grouped by country; exact and prefix name matches rank
// before substring matches, alphabetical within equal rank, and groups are
// ordered by their best-ranked hit.
func (s *Service) Search(ctx context.Context, text string) ([]Group, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil, nil
	}

	candidates, err := s.repo.SearchText(ctx, needle)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		loc  *Location
		rank int
	}
	var hits []ranked
	for _, l := range candidates {
		r := matchRank(l, needle)
		if r > 0 {
			hits = append(hits, ranked{loc: l, rank: r})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank > hits[j].rank
		}
		if hits[i].loc.Name != hits[j].loc.Name {
			return hits[i].loc.Name < hits[j].loc.Name
		}
		return hits[i].loc.ID() < hits[j].loc.ID()
	})

	var groups []Group
	index := make(map[string]int)
	for _, h := range hits {
		i, ok := index[h.loc.Country]
		if !ok {
			i = len(groups)
			index[h.loc.Country] = i
			groups = append(groups, Group{Country: h.loc.Country})
		}
		groups[i].Locations = append(groups[i].Locations, h.loc)
	}
	return groups, nil
}

// Match ranks, strongest first. rankNamePrefix is the floor for resolving
// free text straight from the catalog.
const (
	rankExactName  = 3
	rankNamePrefix = 2
	rankSubstring  = 1
)

// matchRank scores a location against a lowercase needle.
func matchRank(l *Location, needle string) int {
	name := strings.ToLower(l.Name)
	switch {
	case name == needle:
		return rankExactName
	case strings.HasPrefix(name, needle):
		return rankNamePrefix
	case strings.Contains(name, needle),
		strings.Contains(strings.ToLower(l.Region), needle),
		strings.Contains(strings.ToLower(l.Country), needle):
		return rankSubstring
	}
	return 0
}

// LocationFromGeoPoint converts an external dataset point into a catalog
// location.
func LocationFromGeoPoint(p GeoPoint) *Location {
	name := p.Name
	if name == "" {
		category := p.Category
		if category == "" {
			category = "spot"
		}
		name = fmt.Sprintf("%s at %.4f, %.4f", category, p.Lat, p.Lon)
	}

	country := p.Country
	if country == "" {
		country = "Unknown"
	}

	return &Location{
		Slug:        Slugify(name),
		CountrySlug: Slugify(country),
		Name:        name,
		Country:     country,
		Region:      p.Region,
		Lat:         p.Lat,
		Lon:         p.Lon,
		Provenance:  ProvenanceOSM,
		OSMType:     p.OSMType,
		OSMID:       p.OSMID,
		Confidence:  SnorkelConfidence(p.Tags),
	}
}

func parseCoordinates(q string) (lat, lon float64, ok bool) {
	parts := strings.Split(q, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
