package openmeteo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunctk/snorkelforecast/internal/forecast"
	"github.com/dunctk/snorkelforecast/internal/forecast/openmeteo"
)

const marineBody = `{
	"hourly": {
		"time": ["2026-08-30T10:00", "2026-08-30T11:00", "2026-08-30T12:00"],
		"wave_height": [0.2, null, 0.4],
		"sea_surface_temperature": [24.5, 24.6, 24.7],
		"sea_level_height_msl": [0.1, 0.3, 0.2],
		"ocean_current_velocity": [0.1, 0.1, 0.2]
	}
}`

const weatherBody = `{
	"hourly": {
		"time": ["2026-08-30T10:00", "2026-08-30T11:00", "2026-08-30T12:00"],
		"wind_speed_10m": [3.1, 4.0, null]
	},
	"daily": {
		"time": ["2026-08-30"],
		"sunrise": ["2026-08-30T05:22"],
		"sunset": ["2026-08-30T19:41"]
	}
}`

func TestHourlyMarine(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marineBody))
	}))
	defer server.Close()

	client := openmeteo.NewMarineClient(openmeteo.ClientConfig{
		BaseURL: server.URL,
		Logger:  zerolog.Nop(),
	})

	series, err := client.HourlyMarine(context.Background(), 36.997, -1.896, 72)
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "wave_height")
	assert.Contains(t, gotQuery, "sea_level_height_msl")
	assert.Contains(t, gotQuery, "timezone=UTC")
	assert.Contains(t, gotQuery, "past_hours=0")
	assert.Contains(t, gotQuery, "forecast_hours=72")

	require.Len(t, series.Times, 3)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), series.Times[0])
	require.NotNil(t, series.WaveHeight[0])
	assert.Equal(t, 0.2, *series.WaveHeight[0])
	assert.Nil(t, series.WaveHeight[1], "null measurement must decode to nil")
}

func TestHourlyWeather(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(weatherBody))
	}))
	defer server.Close()

	client := openmeteo.NewWeatherClient(openmeteo.ClientConfig{
		BaseURL: server.URL,
		Logger:  zerolog.Nop(),
	})

	series, err := client.HourlyWeather(context.Background(), 36.997, -1.896, 72)
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "wind_speed_10m")
	assert.Contains(t, gotQuery, "wind_speed_unit=ms")
	assert.Contains(t, gotQuery, "daily=sunrise%2Csunset")

	require.Len(t, series.Times, 3)
	require.NotNil(t, series.WindSpeed[0])
	assert.Equal(t, 3.1, *series.WindSpeed[0])
	assert.Nil(t, series.WindSpeed[2])

	require.Len(t, series.Days, 1)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), series.Days[0])
	assert.Equal(t, time.Date(2026, 8, 30, 5, 22, 0, 0, time.UTC), series.Sunrises[0])
	assert.Equal(t, time.Date(2026, 8, 30, 19, 41, 0, 0, time.UTC), series.Sunsets[0])
}

func TestHourlyMarineUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := openmeteo.NewMarineClient(openmeteo.ClientConfig{
		BaseURL: server.URL,
		Logger:  zerolog.Nop(),
	})

	_, err := client.HourlyMarine(context.Background(), 36.997, -1.896, 72)
	require.Error(t, err)

	fe := forecast.AsFetchError(err)
	require.NotNil(t, fe)
	assert.Equal(t, forecast.FetchUpstream, fe.Kind)
	assert.Equal(t, openmeteo.MarineProviderName, fe.Source)
}

func TestHourlyWeatherMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"hourly": {"time": ["not-a-time"], "wind_speed_10m": [1.0]}}`))
	}))
	defer server.Close()

	client := openmeteo.NewWeatherClient(openmeteo.ClientConfig{
		BaseURL: server.URL,
		Logger:  zerolog.Nop(),
	})

	_, err := client.HourlyWeather(context.Background(), 36.997, -1.896, 72)
	require.Error(t, err)

	fe := forecast.AsFetchError(err)
	require.NotNil(t, fe)
	assert.Equal(t, forecast.FetchMalformed, fe.Kind)
}
