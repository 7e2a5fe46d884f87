package forecast

import (
	"context"
	"sort"
	"sync"
)

// HistoryRepository records fetched forecast hours for historical analysis.
// Recording the same (location, hour) twice is a no-op.
type HistoryRepository interface {
	RecordHours(ctx context.Context, locationID string, hours []HourlyRecord) error
}

// InMemoryHistory is an in-memory HistoryRepository for tests and
// database-less runs.
type InMemoryHistory struct {
	mu    sync.RWMutex
	hours map[string]map[int64]HourlyRecord
}

// NewInMemoryHistory creates a new in-memory history store.
func NewInMemoryHistory() *InMemoryHistory {
	return &InMemoryHistory{hours: make(map[string]map[int64]HourlyRecord)}
}

// RecordHours stores the hours, keeping the first record per (location, hour).
func (h *InMemoryHistory) RecordHours(_ context.Context, locationID string, hours []HourlyRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	byTime, ok := h.hours[locationID]
	if !ok {
		byTime = make(map[int64]HourlyRecord, len(hours))
		h.hours[locationID] = byTime
	}
	for _, hour := range hours {
		key := hour.Time.Unix()
		if _, exists := byTime[key]; !exists {
			byTime[key] = hour
		}
	}
	return nil
}

// Hours returns the recorded hours for a location, ordered by time.
func (h *InMemoryHistory) Hours(locationID string) []HourlyRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	byTime := h.hours[locationID]
	out := make([]HourlyRecord, 0, len(byTime))
	for _, hour := range byTime {
		out = append(out, hour)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Time.Before(out[b].Time) })
	return out
}

// Ensure InMemoryHistory implements HistoryRepository.
var _ HistoryRepository = (*InMemoryHistory)(nil)
