package importer

import (
	"math"

	"github.com/dunctk/snorkelforecast/internal/catalog"
)

// DefaultZoom balances tile count against Overpass query size for coastal
// regions.
const DefaultZoom = 10

// TileCoord converts a coordinate to slippy map tile indices at a zoom
// level, using the Web Mercator projection.
func TileCoord(lat, lon float64, zoom int) (x, y int) {
	n := float64(int(1) << zoom)

	x = int((lon + 180) / 360 * n)

	latRad := lat * math.Pi / 180
	y = int((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)

	max := (1 << zoom) - 1
	x = clamp(x, 0, max)
	y = clamp(y, 0, max)
	return x, y
}

// TileBBox returns the geographic bounds of a tile.
func TileBBox(z, x, y int) catalog.BoundingBox {
	return catalog.BoundingBox{
		MinLat: tileLat(z, y+1),
		MinLon: tileLon(z, x),
		MaxLat: tileLat(z, y),
		MaxLon: tileLon(z, x+1),
	}
}

// TilesForBBox partitions a region into the tiles covering it. The same
// region always yields the same tiles, so enqueueing is idempotent.
func TilesForBBox(box catalog.BoundingBox, zoom int) []Tile {
	minX, maxY := TileCoord(box.MinLat, box.MinLon, zoom)
	maxX, minY := TileCoord(box.MaxLat, box.MaxLon, zoom)

	tiles := make([]Tile, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, Tile{
				Z:           zoom,
				X:           x,
				Y:           y,
				Status:      StatusPending,
				MaxAttempts: DefaultMaxAttempts,
			})
		}
	}
	return tiles
}

func tileLon(z, x int) float64 {
	return float64(x)/float64(int(1)<<z)*360 - 180
}

func tileLat(z, y int) float64 {
	n := math.Pi - 2*math.Pi*float64(y)/float64(int(1)<<z)
	return 180 / math.Pi * math.Atan(math.Sinh(n))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
