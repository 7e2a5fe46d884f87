// Package openmeteo provides Open-Meteo API clients for the marine and
// surface weather hourly series.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dunctk/snorkelforecast/internal/forecast"
	"github.com/dunctk/snorkelforecast/internal/provider/resilience"
)

const (
	// MarineProviderName identifies the marine conditions provider.
	MarineProviderName = "open-meteo-marine"

	// WeatherProviderName identifies the surface weather provider.
	WeatherProviderName = "open-meteo-weather"

	// DefaultMarineURL is the Open-Meteo marine API endpoint.
	DefaultMarineURL = "https://marine-api.open-meteo.com/v1/marine"

	// DefaultWeatherURL is the Open-Meteo forecast API endpoint.
	DefaultWeatherURL = "https://api.open-meteo.com/v1/forecast"
)

// ClientConfig holds configuration shared by the Open-Meteo clients.
type ClientConfig struct {
	// BaseURL overrides the API endpoint (optional, used in tests).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// MarineClient fetches the hourly marine conditions series.
// It implements forecast.MarineProvider.
type MarineClient struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewMarineClient creates a new marine API client.
func NewMarineClient(cfg ClientConfig) *MarineClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultMarineURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(MarineProviderName))
	}

	return &MarineClient{baseURL: baseURL, httpClient: httpClient, logger: cfg.Logger}
}

// Name returns the provider name.
func (c *MarineClient) Name() string {
	return MarineProviderName
}

// HourlyMarine fetches horizonHours of hourly marine data for a coordinate.
func (c *MarineClient) HourlyMarine(ctx context.Context, lat, lon float64, horizonHours int) (*forecast.MarineSeries, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.6f", lat))
	q.Set("longitude", fmt.Sprintf("%.6f", lon))
	q.Set("hourly", "wave_height,sea_surface_temperature,sea_level_height_msl,ocean_current_velocity")
	q.Set("timezone", "UTC")
	q.Set("past_hours", "0")
	q.Set("forecast_hours", strconv.Itoa(horizonHours))

	var resp marineResponse
	if err := getJSON(ctx, c.httpClient, MarineProviderName, c.baseURL, q, &resp); err != nil {
		return nil, err
	}

	series, err := resp.toSeries()
	if err != nil {
		return nil, &forecast.FetchError{Kind: forecast.FetchMalformed, Source: MarineProviderName, Err: err}
	}
	return series, nil
}

// WeatherClient fetches the hourly surface weather series plus daily solar
// times. It implements forecast.WeatherProvider.
type WeatherClient struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewWeatherClient creates a new forecast API client.
func NewWeatherClient(cfg ClientConfig) *WeatherClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultWeatherURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(WeatherProviderName))
	}

	return &WeatherClient{baseURL: baseURL, httpClient: httpClient, logger: cfg.Logger}
}

// Name returns the provider name.
func (c *WeatherClient) Name() string {
	return WeatherProviderName
}

// HourlyWeather fetches horizonHours of hourly wind data for a coordinate.
func (c *WeatherClient) HourlyWeather(ctx context.Context, lat, lon float64, horizonHours int) (*forecast.WeatherSeries, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.6f", lat))
	q.Set("longitude", fmt.Sprintf("%.6f", lon))
	q.Set("hourly", "wind_speed_10m")
	q.Set("daily", "sunrise,sunset")
	q.Set("wind_speed_unit", "ms")
	q.Set("timezone", "UTC")
	q.Set("past_hours", "0")
	q.Set("forecast_hours", strconv.Itoa(horizonHours))

	var resp weatherResponse
	if err := getJSON(ctx, c.httpClient, WeatherProviderName, c.baseURL, q, &resp); err != nil {
		return nil, err
	}

	series, err := resp.toSeries()
	if err != nil {
		return nil, &forecast.FetchError{Kind: forecast.FetchMalformed, Source: WeatherProviderName, Err: err}
	}
	return series, nil
}

// getJSON performs a GET against an Open-Meteo endpoint and decodes the body,
// mapping failures onto the fetch error taxonomy at this boundary.
func getJSON(ctx context.Context, client *resilience.Client, source, baseURL string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return &forecast.FetchError{Kind: forecast.FetchUpstream, Source: source, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		kind := forecast.FetchUpstream
		if errors.Is(err, context.DeadlineExceeded) {
			kind = forecast.FetchTimeout
		}
		return &forecast.FetchError{Kind: kind, Source: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &forecast.FetchError{
			Kind:   forecast.FetchUpstream,
			Source: source,
			Err:    fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &forecast.FetchError{Kind: forecast.FetchMalformed, Source: source, Err: err}
	}
	return nil
}
