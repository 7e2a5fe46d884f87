// Package forecast provides snorkeling condition forecasts: fetching marine and
// weather series from upstream providers, classifying hours against thresholds,
// and caching classified timelines per location.
package forecast

import (
	"errors"
	"fmt"
	"time"
)

// State indicates whether a snapshot is within its freshness window.
type State string

const (
	// StateFresh means the snapshot was fetched within the cache TTL.
	StateFresh State = "fresh"

	// StateStale means the snapshot outlived its TTL but is served as a
	// fallback because a refresh attempt failed.
	StateStale State = "stale"
)

// HourlyRecord is one classified hour of conditions at a location.
// Measurements are nil when the upstream series had no value for that hour.
type HourlyRecord struct {
	// Time is the UTC hour this record covers.
	Time time.Time `json:"time"`

	// WaveHeight in meters.
	WaveHeight *float64 `json:"wave_height"`

	// WindSpeed at 10m in m/s.
	WindSpeed *float64 `json:"wind_speed"`

	// SeaSurfaceTemp in °C.
	SeaSurfaceTemp *float64 `json:"sea_surface_temperature"`

	// SeaLevelHeight above mean sea level in meters.
	SeaLevelHeight *float64 `json:"sea_level_height,omitempty"`

	// CurrentVelocity of the ocean current in m/s.
	CurrentVelocity *float64 `json:"current_velocity,omitempty"`

	// Suitable is true only when wave height, wind speed and sea surface
	// temperature are all present and within thresholds.
	Suitable bool `json:"suitable"`

	// Score is a normalized 0-1 quality score for ranking hours.
	Score float64 `json:"score"`

	// Per-metric threshold results, kept for display.
	WaveOK    bool `json:"wave_ok"`
	WindOK    bool `json:"wind_ok"`
	SSTOK     bool `json:"sst_ok"`
	CurrentOK bool `json:"current_ok"`

	// SlackOK is true when the hour falls within the slack window around a
	// detected high tide.
	SlackOK bool `json:"slack_ok"`

	// Daylight is true when the hour falls between sunrise and sunset.
	Daylight bool `json:"daylight"`
}

// Snapshot is an immutable classified timeline for one location.
// A refresh produces a new Snapshot; existing ones are never edited in place.
type Snapshot struct {
	// LocationID keys this snapshot in the cache.
	LocationID string `json:"location_id"`

	// Hours are ordered by time ascending with no duplicate timestamps.
	Hours []HourlyRecord `json:"hours"`

	// HighTides are the detected high tide instants within the horizon.
	HighTides []time.Time `json:"high_tides,omitempty"`

	// FetchedAt is when the upstream data was retrieved.
	FetchedAt time.Time `json:"fetched_at"`

	// State is fresh or stale.
	State State `json:"state"`
}

// SuitableCount returns the number of suitable hours in the snapshot.
func (s *Snapshot) SuitableCount() int {
	n := 0
	for _, h := range s.Hours {
		if h.Suitable {
			n++
		}
	}
	return n
}

// FetchErrorKind categorizes upstream fetch failures.
type FetchErrorKind string

const (
	// FetchTimeout means an upstream call exceeded its deadline.
	FetchTimeout FetchErrorKind = "timeout"

	// FetchUpstream means an upstream call failed with a transport or
	// HTTP-level error.
	FetchUpstream FetchErrorKind = "upstream_error"

	// FetchMalformed means the upstream response could not be parsed into
	// the expected shape.
	FetchMalformed FetchErrorKind = "malformed_response"
)

// FetchError is returned when a forecast fetch fails.
// A partial success on one upstream source still yields a FetchError for the
// whole attempt; no snapshot is synthesized from a single source.
type FetchError struct {
	Kind   FetchErrorKind
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Source, e.Kind)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError extracts a *FetchError from err, or nil if there is none.
func AsFetchError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}

// CoordinateKey returns a cache/catalog key for a coordinate pair.
// Coordinates are rounded to three decimals (~110m) so near-duplicate lookups
// share one entry.
func CoordinateKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lon)
}
