package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dunctk/snorkelforecast/internal/catalog"
	"github.com/dunctk/snorkelforecast/internal/forecast"
)

// Flags exposes the runtime switches the refresh job consults.
type Flags interface {
	// BackgroundRefreshDisabled reports whether proactive refreshing is
	// stopped.
	BackgroundRefreshDisabled(ctx context.Context) bool
}

// RefreshJob keeps forecasts for popular locations warm by re-fetching them
// before their cache entries expire.
type RefreshJob struct {
	config  RefreshConfig
	logger  zerolog.Logger
	catalog catalog.Repository
	cache   *forecast.Cache
	flags   Flags

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns          int64
	LocationsRefreshed int64
	LocationsFailed    int64
	LocationsSkipped   int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Logger  zerolog.Logger
	Catalog catalog.Repository
	Cache   *forecast.Cache
	Flags   Flags
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		logger:  cfg.Logger,
		catalog: cfg.Catalog,
		cache:   cfg.Cache,
		flags:   cfg.Flags,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Candidates int
	Refreshed  int
	Failed     int
	Skipped    int
	Errors     []RefreshError
}

// RefreshError records one location that could not be refreshed.
type RefreshError struct {
	LocationID string
	Error      string
}

// Run refreshes every popular location whose forecast is missing or close
// to expiry. Per-location failures are logged and counted, never fatal.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	if j.flags != nil && j.flags.BackgroundRefreshDisabled(ctx) {
		j.logger.Info().Msg("background refresh disabled by feature flag, skipping run")
		result.EndTime = time.Now()
		return result
	}

	candidates, err := j.refreshCandidates(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("listing refresh candidates failed")
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		return result
	}
	result.Candidates = len(candidates)

	j.logger.Info().
		Int("candidates", len(candidates)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting forecast refresh job")

	locationsChan := make(chan *catalog.Location, len(candidates))
	resultsChan := make(chan locationResult, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, locationsChan, resultsChan)
		}()
	}

	for _, loc := range candidates {
		locationsChan <- loc
	}
	close(locationsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for lr := range resultsChan {
		if lr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{
				LocationID: lr.id,
				Error:      lr.err.Error(),
			})
		} else {
			result.Refreshed++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("refreshed", result.Refreshed).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("forecast refresh job completed")

	return result
}

// refreshCandidates returns the popular locations whose cache entries are
// absent or will expire within the low-water mark.
func (j *RefreshJob) refreshCandidates(ctx context.Context) ([]*catalog.Location, error) {
	popular, err := j.catalog.ListPopular(ctx)
	if err != nil {
		return nil, err
	}

	expiring := make(map[string]bool)
	for _, id := range j.cache.ExpiringWithin(j.config.LowWater) {
		expiring[id] = true
	}

	var out []*catalog.Location
	for _, loc := range popular {
		if !j.cache.Contains(loc.ID()) || expiring[loc.ID()] {
			out = append(out, loc)
		}
	}
	return out, nil
}

type locationResult struct {
	id  string
	err error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, locations <-chan *catalog.Location, results chan<- locationResult) {
	for loc := range locations {
		select {
		case <-ctx.Done():
			return
		default:
			results <- locationResult{id: loc.ID(), err: j.refreshLocation(ctx, loc)}
		}
	}
}

func (j *RefreshJob) refreshLocation(ctx context.Context, loc *catalog.Location) error {
	refreshCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	_, err := j.cache.Get(refreshCtx, loc.ID(), loc.Lat, loc.Lon)
	if err != nil {
		j.logger.Warn().Err(err).Str("location", loc.ID()).Msg("forecast refresh failed")
	}
	return err
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.LocationsRefreshed += int64(result.Refreshed)
	j.metrics.LocationsFailed += int64(result.Failed)
	j.metrics.LocationsSkipped += int64(result.Skipped)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:          j.metrics.TotalRuns,
		LocationsRefreshed: j.metrics.LocationsRefreshed,
		LocationsFailed:    j.metrics.LocationsFailed,
		LocationsSkipped:   j.metrics.LocationsSkipped,
		LastRunAt:          j.metrics.LastRunAt,
		LastRunDuration:    j.metrics.LastRunDuration,
		TotalDuration:      j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":          m.TotalRuns,
		"locations_refreshed": m.LocationsRefreshed,
		"locations_failed":    m.LocationsFailed,
		"locations_skipped":   m.LocationsSkipped,
		"last_run_at":         m.LastRunAt,
		"last_run_duration":   m.LastRunDuration.String(),
		"total_duration":      m.TotalDuration.String(),
	}
}
