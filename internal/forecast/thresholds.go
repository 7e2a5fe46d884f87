package forecast

import "time"

// Thresholds define the environmental limits for suitable snorkeling.
// Global defaults for now; per-location overrides plug in through Config.
type Thresholds struct {
	// MaxWaveHeight in meters.
	MaxWaveHeight float64

	// MaxWindSpeed in m/s.
	MaxWindSpeed float64

	// Sea surface temperature range in °C, inclusive.
	MinSeaSurfaceTemp float64
	MaxSeaSurfaceTemp float64

	// MaxCurrentVelocity in m/s. Current is informational only and does not
	// affect Classify.
	MaxCurrentVelocity float64

	// SlackWindow is the interval around a high tide during which the water
	// is considered slack. Informational only, like current.
	SlackWindow time.Duration
}

// DefaultThresholds returns the standard snorkeling thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxWaveHeight:      0.3,
		MaxWindSpeed:       4.5,
		MinSeaSurfaceTemp:  22,
		MaxSeaSurfaceTemp:  29,
		MaxCurrentVelocity: 0.3,
		SlackWindow:        time.Hour,
	}
}

// Classify reports whether an hour is suitable for snorkeling.
// Pure and total: a nil measurement always yields false.
func (t Thresholds) Classify(wave, wind, sst *float64) bool {
	return t.waveOK(wave) && t.windOK(wind) && t.sstOK(sst)
}

func (t Thresholds) waveOK(wave *float64) bool {
	return wave != nil && *wave <= t.MaxWaveHeight
}

func (t Thresholds) windOK(wind *float64) bool {
	return wind != nil && *wind <= t.MaxWindSpeed
}

func (t Thresholds) sstOK(sst *float64) bool {
	return sst != nil && *sst >= t.MinSeaSurfaceTemp && *sst <= t.MaxSeaSurfaceTemp
}

func (t Thresholds) currentOK(current *float64) bool {
	return current != nil && *current <= t.MaxCurrentVelocity
}

// slackOK reports whether the hour falls within the slack window of any high
// tide in the series.
func (t Thresholds) slackOK(at time.Time, highTides []time.Time) bool {
	for _, ht := range highTides {
		d := at.Sub(ht)
		if d < 0 {
			d = -d
		}
		if d <= t.SlackWindow {
			return true
		}
	}
	return false
}

// Score computes a 0-1 quality score for an hour. Each metric is normalized
// to 0-1 and the final score is their product, so one bad metric sinks the
// hour. Hours outside daylight or with a missing core metric score zero.
func (t Thresholds) Score(wave, wind, sst *float64, daylight bool) float64 {
	if !daylight || wave == nil || wind == nil || sst == nil {
		return 0
	}

	waveScore := max(0, 1-*wave/(t.MaxWaveHeight*2))
	windScore := max(0, 1-*wind/(t.MaxWindSpeed*2))

	// Flat inside the ideal range, linear falloff over 5°C outside it.
	var sstScore float64
	switch {
	case *sst >= t.MinSeaSurfaceTemp && *sst <= t.MaxSeaSurfaceTemp:
		sstScore = 1
	case *sst < t.MinSeaSurfaceTemp:
		sstScore = max(0, 1-(t.MinSeaSurfaceTemp-*sst)/5)
	default:
		sstScore = max(0, 1-(*sst-t.MaxSeaSurfaceTemp)/5)
	}

	return waveScore * windScore * sstScore
}
