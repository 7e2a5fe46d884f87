package importer

import (
	"math"
	"testing"

	"github.com/dunctk/snorkelforecast/internal/catalog"
)

func TestTileCoordKnownValues(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		zoom     int
		x, y     int
	}{
		{"origin at zoom zero", 0, 0, 0, 0, 0},
		{"greenwich equator", 0, 0, 1, 1, 1},
		{"carboneras", 36.997, -1.896, 10, 506, 398},
		{"maui", 20.7984, -156.3319, 10, 67, 451},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := TileCoord(tt.lat, tt.lon, tt.zoom)
			if x != tt.x || y != tt.y {
				t.Errorf("TileCoord(%v, %v, %d) = (%d, %d), want (%d, %d)",
					tt.lat, tt.lon, tt.zoom, x, y, tt.x, tt.y)
			}
		})
	}
}

func TestTileBBoxRoundTrip(t *testing.T) {
	lat, lon := 36.997, -1.896
	x, y := TileCoord(lat, lon, 10)

	box := TileBBox(10, x, y)
	if !box.Valid() {
		t.Fatalf("bbox %s not valid", box)
	}
	if lat < box.MinLat || lat > box.MaxLat || lon < box.MinLon || lon > box.MaxLon {
		t.Errorf("coordinate (%v, %v) outside its own tile bbox %s", lat, lon, box)
	}
}

func TestTileBBoxAdjacencySeamless(t *testing.T) {
	a := TileBBox(10, 506, 398)
	b := TileBBox(10, 507, 398)
	if math.Abs(a.MaxLon-b.MinLon) > 1e-9 {
		t.Errorf("adjacent tiles leave a gap: %v vs %v", a.MaxLon, b.MinLon)
	}
}

func TestTilesForBBoxDeterministic(t *testing.T) {
	box := catalog.BoundingBox{MinLat: 36.9, MinLon: -2.0, MaxLat: 37.1, MaxLon: -1.8}

	first := TilesForBBox(box, 10)
	second := TilesForBBox(box, 10)

	if len(first) == 0 {
		t.Fatal("no tiles generated")
	}
	if len(first) != len(second) {
		t.Fatalf("tile counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key() != second[i].Key() {
			t.Errorf("tile %d differs: %s vs %s", i, first[i].Key(), second[i].Key())
		}
	}
}

func TestTilesForBBoxCoversRegion(t *testing.T) {
	box := catalog.BoundingBox{MinLat: 36.9, MinLon: -2.0, MaxLat: 37.1, MaxLon: -1.8}

	tiles := TilesForBBox(box, 10)
	for _, tile := range tiles {
		if !TileBBox(tile.Z, tile.X, tile.Y).Overlaps(box) {
			t.Errorf("tile %s does not overlap the requested region", tile.Key())
		}
	}

	// Every corner of the region falls inside some tile.
	corners := [][2]float64{
		{box.MinLat, box.MinLon},
		{box.MinLat, box.MaxLon},
		{box.MaxLat, box.MinLon},
		{box.MaxLat, box.MaxLon},
	}
	for _, c := range corners {
		covered := false
		for _, tile := range tiles {
			b := TileBBox(tile.Z, tile.X, tile.Y)
			if c[0] >= b.MinLat && c[0] <= b.MaxLat && c[1] >= b.MinLon && c[1] <= b.MaxLon {
				covered = true
				break
			}
		}
		if !covered {
			t.Errorf("corner (%v, %v) not covered by any tile", c[0], c[1])
		}
	}
}
