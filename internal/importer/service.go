package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dunctk/snorkelforecast/internal/catalog"
)

// ErrImportDisabled is returned when tile imports are switched off.
var ErrImportDisabled = errors.New("tile import is disabled")

// Flags exposes the runtime switches the importer consults.
type Flags interface {
	// TileImportDisabled reports whether bulk imports are suspended.
	TileImportDisabled(ctx context.Context) bool
}

// ServiceConfig holds configuration for the import service.
type ServiceConfig struct {
	// Tiles is the tile queue store (required).
	Tiles Repository

	// Catalog receives the imported locations (required).
	Catalog catalog.Repository

	// Geo is the external geographic dataset (required).
	Geo catalog.GeoDataset

	// Logger for import operations.
	Logger zerolog.Logger

	// Flags for runtime switches (optional).
	Flags Flags

	// RetryBackoff is the base delay before a failed tile is retried,
	// doubled per attempt (default: 5 minutes).
	RetryBackoff time.Duration

	// MinConfidence filters out features unlikely to be snorkeling spots
	// (default: keep everything).
	MinConfidence float64
}

// Service drains the tile queue through the geographic dataset and folds
// the results into the catalog.
type Service struct {
	tiles         Repository
	catalog       catalog.Repository
	geo           catalog.GeoDataset
	logger        zerolog.Logger
	flags         Flags
	retryBackoff  time.Duration
	minConfidence float64
}

// NewService creates a new import service.
func NewService(cfg ServiceConfig) *Service {
	backoff := cfg.RetryBackoff
	if backoff == 0 {
		backoff = 5 * time.Minute
	}

	return &Service{
		tiles:         cfg.Tiles,
		catalog:       cfg.Catalog,
		geo:           cfg.Geo,
		logger:        cfg.Logger,
		flags:         cfg.Flags,
		retryBackoff:  backoff,
		minConfidence: cfg.MinConfidence,
	}
}

// EnqueueRegion partitions a region into tiles and adds the new ones to the
// queue. Returns how many tiles were newly created; tiles already queued or
// processed are left untouched.
func (s *Service) EnqueueRegion(ctx context.Context, box catalog.BoundingBox, zoom int) (int, error) {
	if !box.Valid() {
		return 0, fmt.Errorf("invalid bounding box %s", box)
	}
	if zoom <= 0 {
		zoom = DefaultZoom
	}

	tiles := TilesForBBox(box, zoom)
	created, err := s.tiles.CreateTiles(ctx, tiles)
	if err != nil {
		return 0, fmt.Errorf("enqueueing region: %w", err)
	}

	s.logger.Info().
		Str("region", box.String()).
		Int("zoom", zoom).
		Int("tiles", len(tiles)).
		Int("created", created).
		Msg("region enqueued for import")
	return created, nil
}

// BatchResult summarises one import batch.
type BatchResult struct {
	Claimed   int `json:"claimed"`
	Imported  int `json:"imported"`
	Failed    int `json:"failed"`
	Spots     int `json:"spots"`
	Remaining int `json:"remaining"`
}

// ImportNextBatch claims up to n ready tiles and processes them in order.
// Per-tile failures are recorded for retry and do not abort the batch.
func (s *Service) ImportNextBatch(ctx context.Context, n int) (BatchResult, error) {
	if s.flags != nil && s.flags.TileImportDisabled(ctx) {
		return BatchResult{}, ErrImportDisabled
	}
	if n <= 0 {
		n = 10
	}

	now := time.Now()
	claimed, err := s.tiles.ClaimBatch(ctx, n, now)
	if err != nil {
		return BatchResult{}, fmt.Errorf("claiming tiles: %w", err)
	}

	result := BatchResult{Claimed: len(claimed)}
	for _, tile := range claimed {
		spots, err := s.importTile(ctx, tile)
		if err != nil {
			result.Failed++
			nextTry := now.Add(s.retryBackoff << uint(tile.Attempts))
			if markErr := s.tiles.MarkFailed(ctx, tile, err, nextTry); markErr != nil {
				return result, fmt.Errorf("marking tile %s failed: %w", tile.Key(), markErr)
			}
			s.logger.Warn().Err(err).
				Str("tile", tile.Key()).
				Int("attempts", tile.Attempts+1).
				Msg("tile import failed")
			continue
		}
		result.Imported++
		result.Spots += spots
	}

	counts, err := s.tiles.CountByStatus(ctx)
	if err != nil {
		return result, fmt.Errorf("counting tiles: %w", err)
	}
	result.Remaining = counts.Remaining()

	s.logger.Info().
		Int("claimed", result.Claimed).
		Int("imported", result.Imported).
		Int("failed", result.Failed).
		Int("spots", result.Spots).
		Int("remaining", result.Remaining).
		Msg("import batch finished")
	return result, nil
}

// importTile fetches one tile's features and upserts them into the catalog.
func (s *Service) importTile(ctx context.Context, tile Tile) (int, error) {
	started := time.Now()

	points, err := s.geo.PointsInBBox(ctx, TileBBox(tile.Z, tile.X, tile.Y))
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, p := range points {
		loc := catalog.LocationFromGeoPoint(p)
		if loc.Confidence < s.minConfidence {
			continue
		}
		if err := s.catalog.Upsert(ctx, loc); err != nil {
			return imported, fmt.Errorf("upserting %s: %w", loc.ID(), err)
		}
		imported++
	}

	if err := s.tiles.MarkDone(ctx, tile, imported, time.Since(started)); err != nil {
		return imported, fmt.Errorf("marking tile %s done: %w", tile.Key(), err)
	}
	return imported, nil
}

// Status reports the state of the tile queue.
func (s *Service) Status(ctx context.Context) (StatusCounts, error) {
	return s.tiles.CountByStatus(ctx)
}
