package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dunctk/snorkelforecast/internal/catalog"
)

type fakeGeo struct {
	points map[string][]catalog.GeoPoint // keyed by bbox string
	err    error
	calls  int
}

func (f *fakeGeo) SearchByName(_ context.Context, _ string, _ int) ([]catalog.GeoPoint, error) {
	return nil, nil
}

func (f *fakeGeo) PointsInBBox(_ context.Context, box catalog.BoundingBox) ([]catalog.GeoPoint, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.points[box.String()], nil
}

func (f *fakeGeo) Name() string { return "fake" }

func newTestService(geo *fakeGeo) (*Service, Repository, catalog.Repository) {
	tiles := NewInMemoryRepository()
	cat := catalog.NewInMemoryRepository()
	svc := NewService(ServiceConfig{
		Tiles:   tiles,
		Catalog: cat,
		Geo:     geo,
		Logger:  zerolog.Nop(),
	})
	return svc, tiles, cat
}

var testRegion = catalog.BoundingBox{MinLat: 36.9, MinLon: -2.0, MaxLat: 37.1, MaxLon: -1.8}

func TestEnqueueRegionIdempotent(t *testing.T) {
	svc, _, _ := newTestService(&fakeGeo{})
	ctx := context.Background()

	first, err := svc.EnqueueRegion(ctx, testRegion, 10)
	if err != nil {
		t.Fatalf("EnqueueRegion() error = %v", err)
	}
	if first == 0 {
		t.Fatal("no tiles created on first enqueue")
	}

	second, err := svc.EnqueueRegion(ctx, testRegion, 10)
	if err != nil {
		t.Fatalf("second EnqueueRegion() error = %v", err)
	}
	if second != 0 {
		t.Errorf("second enqueue created %d tiles, want 0", second)
	}
}

func TestEnqueueRegionInvalidBox(t *testing.T) {
	svc, _, _ := newTestService(&fakeGeo{})

	_, err := svc.EnqueueRegion(context.Background(), catalog.BoundingBox{
		MinLat: 10, MinLon: 10, MaxLat: 5, MaxLon: 5,
	}, 10)
	if err == nil {
		t.Error("EnqueueRegion() accepted an invalid box")
	}
}

func TestImportNextBatchUpsertsSpots(t *testing.T) {
	geo := &fakeGeo{points: map[string][]catalog.GeoPoint{}}
	svc, tiles, cat := newTestService(geo)
	ctx := context.Background()

	if _, err := svc.EnqueueRegion(ctx, testRegion, 10); err != nil {
		t.Fatalf("EnqueueRegion() error = %v", err)
	}

	// Every tile yields the same spot; upserts by OSM identity dedupe it.
	claimable, _ := tiles.ClaimBatch(ctx, 100, time.Now())
	for _, tile := range claimable {
		box := TileBBox(tile.Z, tile.X, tile.Y)
		geo.points[box.String()] = []catalog.GeoPoint{{
			OSMType: "node", OSMID: 101, Name: "El Arrecife",
			Lat: box.MinLat, Lon: box.MinLon, Category: "reef",
			Tags: map[string]string{"natural": "reef"},
		}}
		// Put the tile back so the service can claim it.
		_ = tiles.MarkFailed(ctx, tile, errors.New("reset"), time.Now().Add(-time.Minute))
	}

	result, err := svc.ImportNextBatch(ctx, 100)
	if err != nil {
		t.Fatalf("ImportNextBatch() error = %v", err)
	}
	if result.Failed != 0 {
		t.Errorf("Failed = %d, want 0", result.Failed)
	}
	if result.Imported != result.Claimed {
		t.Errorf("Imported = %d, want %d", result.Imported, result.Claimed)
	}
	if result.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", result.Remaining)
	}

	n, _ := cat.Count(ctx)
	if n != 1 {
		t.Errorf("catalog Count = %d, want 1 (same OSM identity)", n)
	}
}

func TestImportNextBatchRecordsFailures(t *testing.T) {
	geo := &fakeGeo{err: errors.New("overpass down")}
	svc, tiles, _ := newTestService(geo)
	ctx := context.Background()

	if _, err := svc.EnqueueRegion(ctx, testRegion, 10); err != nil {
		t.Fatalf("EnqueueRegion() error = %v", err)
	}

	result, err := svc.ImportNextBatch(ctx, 2)
	if err != nil {
		t.Fatalf("ImportNextBatch() error = %v", err)
	}
	if result.Failed != 2 {
		t.Errorf("Failed = %d, want 2", result.Failed)
	}

	counts, _ := tiles.CountByStatus(ctx)
	if counts.Failed != 2 {
		t.Errorf("failed tiles = %d, want 2", counts.Failed)
	}

	// Failed tiles wait out their backoff before they can be claimed again.
	claimed, _ := tiles.ClaimBatch(ctx, 10, time.Now())
	for _, tile := range claimed {
		if tile.Attempts > 0 {
			t.Errorf("tile %s claimed before its retry time", tile.Key())
		}
	}
}

func TestTileRetriesExhaust(t *testing.T) {
	tiles := NewInMemoryRepository()
	ctx := context.Background()

	if _, err := tiles.CreateTiles(ctx, []Tile{{Z: 10, X: 1, Y: 1, MaxAttempts: 2}}); err != nil {
		t.Fatalf("CreateTiles() error = %v", err)
	}

	cause := errors.New("boom")
	past := time.Now().Add(-time.Minute)
	for i := 0; i < 2; i++ {
		claimed, err := tiles.ClaimBatch(ctx, 1, time.Now())
		if err != nil || len(claimed) != 1 {
			t.Fatalf("claim %d: tiles = %d, err = %v", i, len(claimed), err)
		}
		if err := tiles.MarkFailed(ctx, claimed[0], cause, past); err != nil {
			t.Fatalf("MarkFailed() error = %v", err)
		}
	}

	// Retry budget used up, the tile stays failed.
	claimed, err := tiles.ClaimBatch(ctx, 1, time.Now())
	if err != nil {
		t.Fatalf("ClaimBatch() error = %v", err)
	}
	if len(claimed) != 0 {
		t.Errorf("claimed %d exhausted tiles, want 0", len(claimed))
	}

	counts, _ := tiles.CountByStatus(ctx)
	if counts.Failed != 1 {
		t.Errorf("failed tiles = %d, want 1", counts.Failed)
	}
}

type disabledFlags struct{}

func (disabledFlags) TileImportDisabled(_ context.Context) bool { return true }

func TestImportDisabledByFlag(t *testing.T) {
	svc := NewService(ServiceConfig{
		Tiles:   NewInMemoryRepository(),
		Catalog: catalog.NewInMemoryRepository(),
		Geo:     &fakeGeo{},
		Logger:  zerolog.Nop(),
		Flags:   disabledFlags{},
	})

	_, err := svc.ImportNextBatch(context.Background(), 5)
	if !errors.Is(err, ErrImportDisabled) {
		t.Errorf("ImportNextBatch() error = %v, want ErrImportDisabled", err)
	}
}
