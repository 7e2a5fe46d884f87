package catalog

import (
	"context"
	"fmt"
)

// SeedLocations returns the curated starter catalog. These destinations are
// always present and flagged popular so the background refresher keeps their
// forecasts warm.
func SeedLocations() []*Location {
	return []*Location{
		{
			Slug:        "carboneras",
			CountrySlug: "spain",
			Name:        "Carboneras",
			Country:     "Spain",
			Region:      "Almeria",
			Lat:         36.997,
			Lon:         -1.896,
			Timezone:    "Europe/Madrid",
			Description: "Clear Mediterranean waters at the edge of the Cabo de Gata natural park.",
			Provenance:  ProvenanceSeeded,
			Popular:     true,
		},
		{
			Slug:        "zakynthos",
			CountrySlug: "greece",
			Name:        "Zakynthos",
			Country:     "Greece",
			Region:      "Ionian Islands",
			Lat:         37.79,
			Lon:         20.7334,
			Timezone:    "Europe/Athens",
			Description: "Ionian island famous for turtle sightings and limestone sea caves.",
			Provenance:  ProvenanceSeeded,
			Popular:     true,
		},
		{
			Slug:        "santorini",
			CountrySlug: "greece",
			Name:        "Santorini",
			Country:     "Greece",
			Region:      "Cyclades",
			Lat:         36.3932,
			Lon:         25.4615,
			Timezone:    "Europe/Athens",
			Description: "Volcanic reefs and caldera walls with dramatic underwater scenery.",
			Provenance:  ProvenanceSeeded,
			Popular:     true,
		},
		{
			Slug:        "kas",
			CountrySlug: "turkey",
			Name:        "Kas",
			Country:     "Turkey",
			Region:      "Antalya",
			Lat:         36.2025,
			Lon:         29.6367,
			Timezone:    "Europe/Istanbul",
			Description: "Turquoise coast town with exceptional visibility and sheltered bays.",
			Provenance:  ProvenanceSeeded,
			Popular:     true,
		},
		{
			Slug:        "dubrovnik",
			CountrySlug: "croatia",
			Name:        "Dubrovnik",
			Country:     "Croatia",
			Region:      "Dalmatia",
			Lat:         42.6507,
			Lon:         18.0944,
			Timezone:    "Europe/Zagreb",
			Description: "Adriatic old town with rocky coves right below the city walls.",
			Provenance:  ProvenanceSeeded,
			Popular:     true,
		},
		{
			Slug:        "maui",
			CountrySlug: "usa",
			Name:        "Maui",
			Country:     "USA",
			Region:      "Hawaii",
			Lat:         20.7984,
			Lon:         -156.3319,
			Timezone:    "Pacific/Honolulu",
			Description: "Coral gardens and year-round warm water on the leeward shores.",
			Provenance:  ProvenanceSeeded,
			Popular:     true,
		},
	}
}

// EnsureSeeded upserts the curated catalog into the repository. Safe to run
// on every startup.
func EnsureSeeded(ctx context.Context, repo Repository) error {
	for _, loc := range SeedLocations() {
		if err := repo.Upsert(ctx, loc); err != nil {
			return fmt.Errorf("seeding %s: %w", loc.ID(), err)
		}
	}
	return nil
}
