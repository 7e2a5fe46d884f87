// Package overpass queries the Overpass API for snorkeling-relevant
// OpenStreetMap features.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/dunctk/snorkelforecast/internal/catalog"
	"github.com/dunctk/snorkelforecast/internal/forecast"
	"github.com/dunctk/snorkelforecast/internal/provider/resilience"
)

// ProviderName identifies this dataset in logs and error sources.
const ProviderName = "overpass"

const userAgent = "SnorkelForecast/1.0 (https://snorkelforecast.com)"

// DefaultEndpoints are public Overpass mirrors, tried in rotation so a
// single slow mirror does not stall imports.
var DefaultEndpoints = []string{
	"https://overpass.private.coffee/api/interpreter",
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
}

// snorkelSelectors are the tag filters that identify snorkeling-relevant
// features. %s is replaced with a spatial or name constraint.
var snorkelSelectors = []string{
	`node["sport"="scuba_diving"]["scuba_diving:divespot"="yes"]%s`,
	`way["natural"="reef"]%s`,
	`relation["natural"="reef"]%s`,
	`node["natural"="beach"]%s`,
	`way["natural"="beach"]%s`,
	`node["amenity"="dive_centre"]%s`,
	`node["shop"="scuba_diving"]%s`,
	`node["leisure"="marina"]%s`,
	`way["leisure"="beach_resort"]%s`,
}

// ClientConfig holds configuration for the Overpass client.
type ClientConfig struct {
	// Endpoints to rotate through. Default: DefaultEndpoints.
	Endpoints []string

	// HTTPClient is the resilient HTTP client to use (required).
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client talks to the Overpass API and implements catalog.GeoDataset.
type Client struct {
	endpoints []string
	http      *resilience.Client
	logger    zerolog.Logger
	attempts  atomic.Uint64
}

// NewClient creates a new Overpass client.
func NewClient(cfg ClientConfig) *Client {
	endpoints := cfg.Endpoints
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}

	return &Client{
		endpoints: endpoints,
		http:      cfg.HTTPClient,
		logger:    cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name identifies the dataset.
func (c *Client) Name() string { return ProviderName }

// SearchByName finds snorkeling-relevant features whose name matches,
// case-insensitive.
func (c *Client) SearchByName(ctx context.Context, name string, limit int) ([]catalog.GeoPoint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	constraint := fmt.Sprintf(`["name"~"%s",i]`, regexp.QuoteMeta(name))
	query := buildQuery(constraint, limit)
	return c.run(ctx, query)
}

// PointsInBBox returns all snorkeling-relevant features inside the box.
func (c *Client) PointsInBBox(ctx context.Context, box catalog.BoundingBox) ([]catalog.GeoPoint, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("invalid bounding box %s", box)
	}

	constraint := fmt.Sprintf("(%f,%f,%f,%f)", box.MinLat, box.MinLon, box.MaxLat, box.MaxLon)
	query := buildQuery(constraint, 0)
	return c.run(ctx, query)
}

// buildQuery assembles an Overpass QL union of the snorkeling selectors
// with the given constraint appended to each.
func buildQuery(constraint string, limit int) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, sel := range snorkelSelectors {
		fmt.Fprintf(&b, "  %s;\n", fmt.Sprintf(sel, constraint))
	}
	b.WriteString(");\nout center")
	if limit > 0 {
		fmt.Fprintf(&b, " %d", limit)
	}
	b.WriteString(";")
	return b.String()
}

// run executes the query against the mirrors, starting at a rotating offset
// and falling through to the next mirror on failure.
func (c *Client) run(ctx context.Context, query string) ([]catalog.GeoPoint, error) {
	start := int(c.attempts.Add(1) - 1)

	var lastErr error
	for i := range c.endpoints {
		endpoint := c.endpoints[(start+i)%len(c.endpoints)]

		points, err := c.query(ctx, endpoint, query)
		if err == nil {
			return points, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("overpass mirror failed, rotating")
	}
	return nil, lastErr
}

func (c *Client) query(ctx context.Context, endpoint, query string) ([]catalog.GeoPoint, error) {
	u := endpoint + "?" + url.Values{"data": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &forecast.FetchError{Kind: forecast.FetchUpstream, Source: ProviderName, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		kind := forecast.FetchUpstream
		if errors.Is(err, context.DeadlineExceeded) {
			kind = forecast.FetchTimeout
		}
		return nil, &forecast.FetchError{Kind: kind, Source: ProviderName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &forecast.FetchError{
			Kind:   forecast.FetchUpstream,
			Source: ProviderName,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var body overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &forecast.FetchError{Kind: forecast.FetchMalformed, Source: ProviderName, Err: err}
	}

	points := make([]catalog.GeoPoint, 0, len(body.Elements))
	for _, el := range body.Elements {
		if p, ok := el.toGeoPoint(); ok {
			points = append(points, p)
		}
	}
	return points, nil
}

// Ensure Client implements the dataset interface.
var _ catalog.GeoDataset = (*Client)(nil)
