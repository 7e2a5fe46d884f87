package catalog

import "strings"

// SnorkelConfidence estimates 0-1 snorkeling suitability from OSM tags.
// Direct diving indicators weigh most, natural features and nearby dive
// infrastructure add to the score, and clearly unrelated features sink it.
func SnorkelConfidence(tags map[string]string) float64 {
	score := 0.0

	if tags["sport"] == "scuba_diving" && tags["scuba_diving:divespot"] == "yes" {
		score += 0.6
	}

	switch tags["natural"] {
	case "reef":
		score += 0.4
	case "beach":
		score += 0.2
	}

	if tags["amenity"] == "dive_centre" {
		score += 0.3
	}
	if tags["shop"] == "scuba_diving" {
		score += 0.2
	}

	if tags["boundary"] == "national_park" || tags["boundary"] == "protected_area" {
		if strings.Contains(strings.ToLower(tags["name"]), "marine") {
			score += 0.3
		}
	}

	if tags["leisure"] == "beach_resort" || tags["leisure"] == "marina" {
		score += 0.3
	}

	if tags["highway"] != "" || tags["building"] != "" {
		score -= 0.5
	}

	return min(1, max(0, score))
}
