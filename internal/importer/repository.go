package importer

import (
	"context"
	"time"
)

// Repository defines the interface for import tile storage.
type Repository interface {
	// CreateTiles inserts tiles that do not exist yet and reports how many
	// were new. Existing tiles keep their state, so re-enqueueing a region
	// is idempotent.
	CreateTiles(ctx context.Context, tiles []Tile) (int, error)

	// ClaimBatch atomically moves up to n ready tiles to in_progress and
	// returns them. A tile is ready when it is pending, or failed with
	// retry budget left and NextTryAt in the past.
	ClaimBatch(ctx context.Context, n int, now time.Time) ([]Tile, error)

	// MarkDone records a successful import.
	MarkDone(ctx context.Context, tile Tile, spots int, took time.Duration) error

	// MarkFailed counts the attempt, stores the error and schedules the
	// retry. A tile out of attempts stays failed with no NextTryAt.
	MarkFailed(ctx context.Context, tile Tile, cause error, nextTry time.Time) error

	// CountByStatus summarises the queue.
	CountByStatus(ctx context.Context) (StatusCounts, error)
}
