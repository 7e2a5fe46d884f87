// Package importer runs bulk imports of snorkeling spots by partitioning
// coastal regions into map tiles and draining them through the geographic
// dataset.
package importer

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTiles is returned when no tile is ready to be claimed.
var ErrNoTiles = errors.New("no tiles ready for import")

// TileStatus describes where a tile is in its import lifecycle.
type TileStatus string

const (
	StatusPending    TileStatus = "pending"
	StatusInProgress TileStatus = "in_progress"
	StatusDone       TileStatus = "done"
	StatusFailed     TileStatus = "failed"
)

// DefaultMaxAttempts is how often a tile is retried before it is marked
// failed for good.
const DefaultMaxAttempts = 5

// Tile is one unit of import work, identified by slippy map coordinates.
type Tile struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`

	Status      TileStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`

	// NextTryAt gates retries after a failure.
	NextTryAt time.Time `json:"next_try_at,omitempty"`

	SpotsImported  int           `json:"spots_imported"`
	ImportDuration time.Duration `json:"import_duration,omitempty"`
	LastError      string        `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the unique tile identifier.
func (t *Tile) Key() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Exhausted reports whether the tile has used up its retry budget.
func (t *Tile) Exhausted() bool {
	max := t.MaxAttempts
	if max == 0 {
		max = DefaultMaxAttempts
	}
	return t.Attempts >= max
}

// StatusCounts summarises the import queue.
type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
}

// Total returns the number of tiles across all states.
func (c StatusCounts) Total() int {
	return c.Pending + c.InProgress + c.Done + c.Failed
}

// Remaining returns the number of tiles still to be processed.
func (c StatusCounts) Remaining() int {
	return c.Pending + c.InProgress
}
