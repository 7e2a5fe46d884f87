package forecast

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresHistory is a PostgreSQL implementation of HistoryRepository.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

// NewPostgresHistory creates a new PostgreSQL history store.
func NewPostgresHistory(pool *pgxpool.Pool) *PostgresHistory {
	return &PostgresHistory{pool: pool}
}

// RecordHours bulk-inserts the hours, skipping rows already recorded for the
// same (location, hour).
func (r *PostgresHistory) RecordHours(ctx context.Context, locationID string, hours []HourlyRecord) error {
	if len(hours) == 0 {
		return nil
	}

	query := `
		INSERT INTO forecast_history (
			location_id, time, suitable, score, wave_height, wind_speed,
			sea_surface_temperature, sea_level_height, current_velocity, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (location_id, time) DO NOTHING`

	now := time.Now()

	batch := &pgx.Batch{}
	for _, h := range hours {
		batch.Queue(query,
			locationID, h.Time, h.Suitable, h.Score, h.WaveHeight, h.WindSpeed,
			h.SeaSurfaceTemp, h.SeaLevelHeight, h.CurrentVelocity, now,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range hours {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Ensure PostgresHistory implements HistoryRepository.
var _ HistoryRepository = (*PostgresHistory)(nil)
