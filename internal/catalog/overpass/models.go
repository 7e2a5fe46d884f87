package overpass

import (
	"github.com/dunctk/snorkelforecast/internal/catalog"
)

// overpassResponse is the JSON envelope returned by the Overpass API.
type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// overpassElement is a single OSM feature. Nodes carry lat/lon directly,
// ways and relations only through the "out center" projection.
type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// toGeoPoint converts an element into a dataset point, or false when the
// element carries no usable coordinate.
func (e overpassElement) toGeoPoint() (catalog.GeoPoint, bool) {
	lat, lon := e.Lat, e.Lon
	if e.Center != nil {
		lat, lon = e.Center.Lat, e.Center.Lon
	}
	if lat == 0 && lon == 0 {
		return catalog.GeoPoint{}, false
	}

	return catalog.GeoPoint{
		OSMType:  e.Type,
		OSMID:    e.ID,
		Name:     e.Tags["name"],
		Lat:      lat,
		Lon:      lon,
		Category: categoryFromTags(e.Tags),
		Country:  e.Tags["addr:country"],
		Region:   e.Tags["addr:region"],
		Tags:     e.Tags,
	}, true
}

// categoryFromTags picks a coarse feature category, most specific first.
func categoryFromTags(tags map[string]string) string {
	switch {
	case tags["scuba_diving:divespot"] == "yes":
		return "divespot"
	case tags["natural"] == "reef":
		return "reef"
	case tags["natural"] == "beach":
		return "beach"
	case tags["amenity"] == "dive_centre":
		return "dive_centre"
	case tags["shop"] == "scuba_diving":
		return "dive_shop"
	case tags["leisure"] == "marina":
		return "marina"
	case tags["leisure"] == "beach_resort":
		return "beach_resort"
	case tags["boundary"] != "":
		return "protected_area"
	default:
		return "spot"
	}
}
