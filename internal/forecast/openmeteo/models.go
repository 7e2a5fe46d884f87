package openmeteo

import (
	"fmt"
	"time"

	"github.com/dunctk/snorkelforecast/internal/forecast"
)

// Open-Meteo API response structures. Hourly value arrays carry nulls for
// missing measurements, which decode to nil pointers.

type marineResponse struct {
	Hourly struct {
		Time                 []string   `json:"time"`
		WaveHeight           []*float64 `json:"wave_height"`
		SeaSurfaceTemp       []*float64 `json:"sea_surface_temperature"`
		SeaLevelHeightMSL    []*float64 `json:"sea_level_height_msl"`
		OceanCurrentVelocity []*float64 `json:"ocean_current_velocity"`
	} `json:"hourly"`
}

type weatherResponse struct {
	Hourly struct {
		Time         []string   `json:"time"`
		WindSpeed10m []*float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
	Daily struct {
		Time    []string `json:"time"`
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// Open-Meteo returns timestamps without a zone suffix; with timezone=UTC in
// the query they are UTC instants.
const (
	hourlyTimeLayout = "2006-01-02T15:04"
	dailyTimeLayout  = "2006-01-02"
)

func parseHours(raw []string) ([]time.Time, error) {
	times := make([]time.Time, len(raw))
	for i, s := range raw {
		t, err := time.ParseInLocation(hourlyTimeLayout, s, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing hourly time %q: %w", s, err)
		}
		times[i] = t
	}
	return times, nil
}

func parseDays(raw []string) ([]time.Time, error) {
	days := make([]time.Time, len(raw))
	for i, s := range raw {
		t, err := time.ParseInLocation(dailyTimeLayout, s, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parsing daily time %q: %w", s, err)
		}
		days[i] = t
	}
	return days, nil
}

func (r *marineResponse) toSeries() (*forecast.MarineSeries, error) {
	times, err := parseHours(r.Hourly.Time)
	if err != nil {
		return nil, err
	}
	return &forecast.MarineSeries{
		Times:           times,
		WaveHeight:      r.Hourly.WaveHeight,
		SeaSurfaceTemp:  r.Hourly.SeaSurfaceTemp,
		SeaLevelHeight:  r.Hourly.SeaLevelHeightMSL,
		CurrentVelocity: r.Hourly.OceanCurrentVelocity,
	}, nil
}

func (r *weatherResponse) toSeries() (*forecast.WeatherSeries, error) {
	times, err := parseHours(r.Hourly.Time)
	if err != nil {
		return nil, err
	}
	days, err := parseDays(r.Daily.Time)
	if err != nil {
		return nil, err
	}
	sunrises, err := parseHours(r.Daily.Sunrise)
	if err != nil {
		return nil, err
	}
	sunsets, err := parseHours(r.Daily.Sunset)
	if err != nil {
		return nil, err
	}
	return &forecast.WeatherSeries{
		Times:     times,
		WindSpeed: r.Hourly.WindSpeed10m,
		Days:      days,
		Sunrises:  sunrises,
		Sunsets:   sunsets,
	}, nil
}
