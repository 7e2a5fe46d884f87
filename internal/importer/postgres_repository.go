package importer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL tile repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreateTiles inserts tiles that do not exist yet.
func (r *PostgresRepository) CreateTiles(ctx context.Context, tiles []Tile) (int, error) {
	query := `
		INSERT INTO import_tiles (z, x, y, status, max_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (z, x, y) DO NOTHING`

	now := time.Now()
	created := 0

	batch := &pgx.Batch{}
	for _, t := range tiles {
		maxAttempts := t.MaxAttempts
		if maxAttempts == 0 {
			maxAttempts = DefaultMaxAttempts
		}
		batch.Queue(query, t.Z, t.X, t.Y, StatusPending, maxAttempts, now)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range tiles {
		tag, err := results.Exec()
		if err != nil {
			return created, err
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

// ClaimBatch atomically moves up to n ready tiles to in_progress.
// FOR UPDATE SKIP LOCKED lets concurrent workers claim disjoint batches.
func (r *PostgresRepository) ClaimBatch(ctx context.Context, n int, now time.Time) ([]Tile, error) {
	query := `
		UPDATE import_tiles SET status = $1, updated_at = $2
		WHERE (z, x, y) IN (
			SELECT z, x, y FROM import_tiles
			WHERE status = $3
			   OR (status = $4 AND attempts < max_attempts AND next_try_at <= $2)
			ORDER BY z, x, y
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING z, x, y, status, attempts, max_attempts,
			coalesce(next_try_at, 'epoch'::timestamptz),
			spots_imported, import_duration_ms, coalesce(last_error, ''),
			created_at, updated_at`

	rows, err := r.pool.Query(ctx, query, StatusInProgress, now, StatusPending, StatusFailed, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tile
	for rows.Next() {
		var t Tile
		var durationMs int64
		err := rows.Scan(
			&t.Z, &t.X, &t.Y, &t.Status, &t.Attempts, &t.MaxAttempts,
			&t.NextTryAt, &t.SpotsImported, &durationMs, &t.LastError,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		t.ImportDuration = time.Duration(durationMs) * time.Millisecond
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkDone records a successful import.
func (r *PostgresRepository) MarkDone(ctx context.Context, tile Tile, spots int, took time.Duration) error {
	query := `
		UPDATE import_tiles
		SET status = $1, spots_imported = $2, import_duration_ms = $3,
		    last_error = NULL, next_try_at = NULL, updated_at = now()
		WHERE z = $4 AND x = $5 AND y = $6`

	_, err := r.pool.Exec(ctx, query, StatusDone, spots, took.Milliseconds(), tile.Z, tile.X, tile.Y)
	return err
}

// MarkFailed counts the attempt and schedules the retry.
func (r *PostgresRepository) MarkFailed(ctx context.Context, tile Tile, cause error, nextTry time.Time) error {
	query := `
		UPDATE import_tiles
		SET status = $1, attempts = attempts + 1, last_error = $2,
		    next_try_at = CASE WHEN attempts + 1 >= max_attempts THEN NULL ELSE $3 END,
		    updated_at = now()
		WHERE z = $4 AND x = $5 AND y = $6`

	_, err := r.pool.Exec(ctx, query, StatusFailed, cause.Error(), nextTry, tile.Z, tile.X, tile.Y)
	return err
}

// CountByStatus summarises the queue.
func (r *PostgresRepository) CountByStatus(ctx context.Context) (StatusCounts, error) {
	query := `SELECT status, count(*) FROM import_tiles GROUP BY status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return StatusCounts{}, err
	}
	defer rows.Close()

	var c StatusCounts
	for rows.Next() {
		var status TileStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, err
		}
		switch status {
		case StatusPending:
			c.Pending = n
		case StatusInProgress:
			c.InProgress = n
		case StatusDone:
			c.Done = n
		case StatusFailed:
			c.Failed = n
		}
	}
	return c, rows.Err()
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
