package forecast

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// MarineSeries is the hourly marine conditions series from an upstream
// provider. All slices are indexed by Times; values are nil where the
// provider had no data.
type MarineSeries struct {
	Times           []time.Time
	WaveHeight      []*float64
	SeaSurfaceTemp  []*float64
	SeaLevelHeight  []*float64
	CurrentVelocity []*float64
}

// WeatherSeries is the hourly surface weather series plus daily solar times.
type WeatherSeries struct {
	Times     []time.Time
	WindSpeed []*float64

	// Daily solar data, indexed by Days (UTC dates).
	Days     []time.Time
	Sunrises []time.Time
	Sunsets  []time.Time
}

// MarineProvider fetches marine condition series for a coordinate.
type MarineProvider interface {
	// HourlyMarine fetches horizonHours of hourly marine data.
	HourlyMarine(ctx context.Context, lat, lon float64, horizonHours int) (*MarineSeries, error)

	// Name returns the provider name for logging.
	Name() string
}

// WeatherProvider fetches surface weather series for a coordinate.
type WeatherProvider interface {
	// HourlyWeather fetches horizonHours of hourly weather data.
	HourlyWeather(ctx context.Context, lat, lon float64, horizonHours int) (*WeatherSeries, error)

	// Name returns the provider name for logging.
	Name() string
}

// FetcherConfig holds configuration for the Fetcher.
type FetcherConfig struct {
	// Marine is the marine conditions provider (required).
	Marine MarineProvider

	// Weather is the surface weather provider (required).
	Weather WeatherProvider

	// Logger for fetch operations.
	Logger zerolog.Logger

	// Thresholds used to classify each hour. Zero value means defaults.
	Thresholds Thresholds

	// HorizonHours is how many future hours to request (default: 72).
	HorizonHours int

	// Timeout is the per-upstream-call deadline (default: 10 seconds).
	Timeout time.Duration
}

// Fetcher retrieves and classifies forecasts from the two upstream sources.
// It holds no state of its own and applies no retry policy; refresh policy
// belongs to the cache layer.
type Fetcher struct {
	marine     MarineProvider
	weather    WeatherProvider
	logger     zerolog.Logger
	thresholds Thresholds
	horizon    int
	timeout    time.Duration
}

// NewFetcher creates a new Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	thresholds := cfg.Thresholds
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}

	horizon := cfg.HorizonHours
	if horizon == 0 {
		horizon = 72
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Fetcher{
		marine:     cfg.Marine,
		weather:    cfg.Weather,
		logger:     cfg.Logger,
		thresholds: thresholds,
		horizon:    horizon,
		timeout:    timeout,
	}
}

// Fetch retrieves both upstream series for a coordinate in parallel, merges
// them by UTC timestamp and classifies each aligned hour. A failure on either
// source fails the whole attempt.
func (f *Fetcher) Fetch(ctx context.Context, lat, lon float64) (*Snapshot, error) {
	type marineResult struct {
		series *MarineSeries
		err    error
	}
	type weatherResult struct {
		series *WeatherSeries
		err    error
	}

	marineCh := make(chan marineResult, 1)
	weatherCh := make(chan weatherResult, 1)

	go func() {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		s, err := f.marine.HourlyMarine(callCtx, lat, lon, f.horizon)
		marineCh <- marineResult{series: s, err: err}
	}()

	go func() {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		s, err := f.weather.HourlyWeather(callCtx, lat, lon, f.horizon)
		weatherCh <- weatherResult{series: s, err: err}
	}()

	mr := <-marineCh
	wr := <-weatherCh

	if mr.err != nil {
		return nil, classifyFetchErr(f.marine.Name(), mr.err)
	}
	if wr.err != nil {
		return nil, classifyFetchErr(f.weather.Name(), wr.err)
	}

	snapshot := f.merge(mr.series, wr.series)

	f.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Int("hours", len(snapshot.Hours)).
		Int("suitable", snapshot.SuitableCount()).
		Msg("forecast fetched and classified")

	return snapshot, nil
}

// merge joins the two series on timestamp, dropping hours missing from either
// side, and classifies each remaining hour.
func (f *Fetcher) merge(marine *MarineSeries, weather *WeatherSeries) *Snapshot {
	windByTime := make(map[int64]*float64, len(weather.Times))
	for i, t := range weather.Times {
		if i < len(weather.WindSpeed) {
			windByTime[t.Unix()] = weather.WindSpeed[i]
		}
	}

	solar := solarMap(weather)
	highTides := detectHighTides(marine)

	hours := make([]HourlyRecord, 0, len(marine.Times))
	var lastUnix int64
	for i, t := range marine.Times {
		wind, ok := windByTime[t.Unix()]
		if !ok {
			continue
		}
		if len(hours) > 0 && t.Unix() <= lastUnix {
			// Duplicate or out-of-order upstream timestamp.
			continue
		}
		lastUnix = t.Unix()

		wave := at(marine.WaveHeight, i)
		sst := at(marine.SeaSurfaceTemp, i)
		seaLevel := at(marine.SeaLevelHeight, i)
		current := at(marine.CurrentVelocity, i)
		daylight := inDaylight(solar, t)

		hours = append(hours, HourlyRecord{
			Time:            t,
			WaveHeight:      wave,
			WindSpeed:       wind,
			SeaSurfaceTemp:  sst,
			SeaLevelHeight:  seaLevel,
			CurrentVelocity: current,
			Suitable:        f.thresholds.Classify(wave, wind, sst),
			Score:           f.thresholds.Score(wave, wind, sst, daylight),
			WaveOK:          f.thresholds.waveOK(wave),
			WindOK:          f.thresholds.windOK(wind),
			SSTOK:           f.thresholds.sstOK(sst),
			CurrentOK:       f.thresholds.currentOK(current),
			SlackOK:         f.thresholds.slackOK(t, highTides),
			Daylight:        daylight,
		})
	}

	sort.Slice(hours, func(a, b int) bool { return hours[a].Time.Before(hours[b].Time) })

	return &Snapshot{
		Hours:     hours,
		HighTides: highTides,
		FetchedAt: time.Now().UTC(),
		State:     StateFresh,
	}
}

// detectHighTides finds local maxima in the sea level series.
func detectHighTides(marine *MarineSeries) []time.Time {
	levels := marine.SeaLevelHeight
	var tides []time.Time
	for i := 1; i+1 < len(levels) && i+1 < len(marine.Times); i++ {
		prev, curr, next := levels[i-1], levels[i], levels[i+1]
		if prev == nil || curr == nil || next == nil {
			continue
		}
		if *curr > *prev && *curr > *next {
			tides = append(tides, marine.Times[i])
		}
	}
	return tides
}

type solarDay struct {
	sunrise time.Time
	sunset  time.Time
}

func solarMap(weather *WeatherSeries) map[string]solarDay {
	m := make(map[string]solarDay, len(weather.Days))
	for i, day := range weather.Days {
		if i >= len(weather.Sunrises) || i >= len(weather.Sunsets) {
			break
		}
		m[day.UTC().Format("2006-01-02")] = solarDay{
			sunrise: weather.Sunrises[i],
			sunset:  weather.Sunsets[i],
		}
	}
	return m
}

func inDaylight(solar map[string]solarDay, t time.Time) bool {
	day, ok := solar[t.UTC().Format("2006-01-02")]
	if !ok {
		return false
	}
	return !t.Before(day.sunrise) && !t.After(day.sunset)
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

// classifyFetchErr maps a provider error onto the fetch error taxonomy.
// Providers may return a *FetchError directly; anything deadline-shaped
// becomes a timeout and the rest counts as an upstream error.
func classifyFetchErr(source string, err error) *FetchError {
	if fe := AsFetchError(err); fe != nil {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: FetchTimeout, Source: source, Err: err}
	}
	return &FetchError{Kind: FetchUpstream, Source: source, Err: err}
}
