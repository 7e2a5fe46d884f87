// Package worker provides background job processing for SnorkelForecast.
package worker

import (
	"time"
)

// RefreshConfig holds configuration for the forecast refresh job.
type RefreshConfig struct {
	// Concurrency is the number of concurrent refresh operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each refresh operation.
	// Default: 30 seconds
	Timeout time.Duration

	// LowWater is how close to expiry a cached forecast may get before the
	// job refreshes it proactively. Default: 1 hour.
	LowWater time.Duration

	// ImportBatchSize is how many import tiles one scheduler tick drains.
	// Default: 10
	ImportBatchSize int
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Concurrency:     3,
		Timeout:         30 * time.Second,
		LowWater:        1 * time.Hour,
		ImportBatchSize: 10,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.LowWater <= 0 {
		c.LowWater = d.LowWater
	}
	if c.ImportBatchSize <= 0 {
		c.ImportBatchSize = d.ImportBatchSize
	}
	return c
}
