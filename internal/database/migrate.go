package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations are applied in order on startup. Each statement is idempotent so
// repeated runs against the same database are safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		country_slug TEXT NOT NULL,
		slug         TEXT NOT NULL,
		name         TEXT NOT NULL,
		country      TEXT NOT NULL,
		region       TEXT NOT NULL DEFAULT '',
		lat          DOUBLE PRECISION NOT NULL,
		lon          DOUBLE PRECISION NOT NULL,
		timezone     TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		provenance   TEXT NOT NULL,
		osm_type     TEXT NOT NULL DEFAULT '',
		osm_id       BIGINT NOT NULL DEFAULT 0,
		confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
		popular      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (country_slug, slug)
	)`,

	// Partial unique index backs the idempotent OSM upsert; locations
	// without an OSM identity are exempt.
	`CREATE UNIQUE INDEX IF NOT EXISTS locations_osm_identity
		ON locations (osm_type, osm_id) WHERE osm_id <> 0`,

	`CREATE INDEX IF NOT EXISTS locations_popular
		ON locations (popular) WHERE popular`,

	`CREATE TABLE IF NOT EXISTS import_tiles (
		z               INT NOT NULL,
		x               INT NOT NULL,
		y               INT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		attempts        INT NOT NULL DEFAULT 0,
		max_attempts    INT NOT NULL DEFAULT 5,
		next_try_at     TIMESTAMPTZ,
		spots_imported  INT NOT NULL DEFAULT 0,
		import_duration_ms BIGINT NOT NULL DEFAULT 0,
		last_error      TEXT,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (z, x, y)
	)`,

	`CREATE INDEX IF NOT EXISTS import_tiles_claimable
		ON import_tiles (status, next_try_at)`,

	// One row per observed forecast hour; the composite key makes
	// re-recording the same hour a no-op.
	`CREATE TABLE IF NOT EXISTS forecast_history (
		location_id             TEXT NOT NULL,
		time                    TIMESTAMPTZ NOT NULL,
		suitable                BOOLEAN NOT NULL,
		score                   DOUBLE PRECISION NOT NULL,
		wave_height             DOUBLE PRECISION,
		wind_speed              DOUBLE PRECISION,
		sea_surface_temperature DOUBLE PRECISION,
		sea_level_height        DOUBLE PRECISION,
		current_velocity        DOUBLE PRECISION,
		created_at              TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (location_id, time)
	)`,

	`CREATE TABLE IF NOT EXISTS feature_flags (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
