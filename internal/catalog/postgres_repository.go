package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL location repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const locationColumns = `
	country_slug, slug, name, country, region, lat, lon, timezone,
	description, provenance, osm_type, osm_id, confidence, popular,
	created_at, updated_at`

func scanLocation(row pgx.Row) (*Location, error) {
	var l Location
	err := row.Scan(
		&l.CountrySlug, &l.Slug, &l.Name, &l.Country, &l.Region,
		&l.Lat, &l.Lon, &l.Timezone, &l.Description, &l.Provenance,
		&l.OSMType, &l.OSMID, &l.Confidence, &l.Popular,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func collectLocations(rows pgx.Rows) ([]*Location, error) {
	defer rows.Close()

	var out []*Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID retrieves a location by country slug and city slug.
func (r *PostgresRepository) GetByID(ctx context.Context, countrySlug, slug string) (*Location, error) {
	query := `SELECT` + locationColumns + `
		FROM locations
		WHERE country_slug = $1 AND slug = $2`

	return scanLocation(r.pool.QueryRow(ctx, query, countrySlug, slug))
}

// GetBySlug retrieves a location by city slug alone, any country.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*Location, error) {
	query := `SELECT` + locationColumns + `
		FROM locations
		WHERE slug = $1
		ORDER BY country_slug
		LIMIT 1`

	return scanLocation(r.pool.QueryRow(ctx, query, slug))
}

// GetByOSMID retrieves a location by its external OSM identity.
func (r *PostgresRepository) GetByOSMID(ctx context.Context, osmType string, osmID int64) (*Location, error) {
	query := `SELECT` + locationColumns + `
		FROM locations
		WHERE osm_type = $1 AND osm_id = $2`

	return scanLocation(r.pool.QueryRow(ctx, query, osmType, osmID))
}

// Nearest returns the closest location and its distance in kilometers.
// Ordering uses an equirectangular approximation in SQL, which is accurate
// enough at catalog densities to pick the right candidate.
func (r *PostgresRepository) Nearest(ctx context.Context, lat, lon float64) (*Location, float64, error) {
	query := `SELECT` + locationColumns + `
		FROM locations
		ORDER BY (lat - $1) * (lat - $1) +
		         (lon - $2) * (lon - $2) * cos(radians($1)) * cos(radians($1))
		LIMIT 1`

	l, err := scanLocation(r.pool.QueryRow(ctx, query, lat, lon))
	if err != nil {
		return nil, 0, err
	}
	return l, distanceKm(lat, lon, l.Lat, l.Lon), nil
}

// SearchText returns locations matching text in name, region or country.
func (r *PostgresRepository) SearchText(ctx context.Context, text string) ([]*Location, error) {
	query := `SELECT` + locationColumns + `
		FROM locations
		WHERE name ILIKE '%' || $1 || '%'
		   OR region ILIKE '%' || $1 || '%'
		   OR country ILIKE '%' || $1 || '%'
		ORDER BY country_slug, slug`

	rows, err := r.pool.Query(ctx, query, text)
	if err != nil {
		return nil, err
	}
	return collectLocations(rows)
}

// ListPopular returns locations flagged for proactive refresh.
func (r *PostgresRepository) ListPopular(ctx context.Context) ([]*Location, error) {
	query := `SELECT` + locationColumns + `
		FROM locations
		WHERE popular
		ORDER BY country_slug, slug`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectLocations(rows)
}

// Upsert inserts or updates a location atomically. OSM-derived rows conflict
// on their external identity; the rest on the natural key.
func (r *PostgresRepository) Upsert(ctx context.Context, loc *Location) error {
	now := time.Now()

	if loc.OSMID != 0 {
		query := `
			INSERT INTO locations (` + locationColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
			ON CONFLICT (osm_type, osm_id) WHERE osm_id <> 0 DO UPDATE SET
				name = EXCLUDED.name,
				country = EXCLUDED.country,
				region = EXCLUDED.region,
				lat = EXCLUDED.lat,
				lon = EXCLUDED.lon,
				description = EXCLUDED.description,
				confidence = EXCLUDED.confidence,
				updated_at = EXCLUDED.updated_at`

		_, err := r.pool.Exec(ctx, query,
			loc.CountrySlug, loc.Slug, loc.Name, loc.Country, loc.Region,
			loc.Lat, loc.Lon, loc.Timezone, loc.Description, loc.Provenance,
			loc.OSMType, loc.OSMID, loc.Confidence, loc.Popular, now,
		)
		return err
	}

	query := `
		INSERT INTO locations (` + locationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (country_slug, slug) DO UPDATE SET
			name = EXCLUDED.name,
			region = EXCLUDED.region,
			timezone = EXCLUDED.timezone,
			description = EXCLUDED.description,
			popular = EXCLUDED.popular,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		loc.CountrySlug, loc.Slug, loc.Name, loc.Country, loc.Region,
		loc.Lat, loc.Lon, loc.Timezone, loc.Description, loc.Provenance,
		loc.OSMType, loc.OSMID, loc.Confidence, loc.Popular, now,
	)
	return err
}

// Count returns the number of locations in the catalog.
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM locations`).Scan(&n)
	return n, err
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
