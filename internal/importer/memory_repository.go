package importer

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Used in tests and for running without a database.
type InMemoryRepository struct {
	mu    sync.Mutex
	tiles map[string]*Tile
}

// NewInMemoryRepository creates a new in-memory tile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{tiles: make(map[string]*Tile)}
}

// CreateTiles inserts tiles that do not exist yet.
func (r *InMemoryRepository) CreateTiles(_ context.Context, tiles []Tile) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	created := 0
	for _, t := range tiles {
		if _, ok := r.tiles[t.Key()]; ok {
			continue
		}
		cpy := t
		if cpy.Status == "" {
			cpy.Status = StatusPending
		}
		if cpy.MaxAttempts == 0 {
			cpy.MaxAttempts = DefaultMaxAttempts
		}
		cpy.CreatedAt = now
		cpy.UpdatedAt = now
		r.tiles[cpy.Key()] = &cpy
		created++
	}
	return created, nil
}

func ready(t *Tile, now time.Time) bool {
	switch t.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return !t.Exhausted() && !t.NextTryAt.After(now)
	default:
		return false
	}
}

// ClaimBatch moves up to n ready tiles to in_progress.
func (r *InMemoryRepository) ClaimBatch(_ context.Context, n int, now time.Time) ([]Tile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys []string
	for k, t := range r.tiles {
		if ready(t, now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []Tile
	for _, k := range keys {
		if len(out) >= n {
			break
		}
		t := r.tiles[k]
		t.Status = StatusInProgress
		t.UpdatedAt = now
		out = append(out, *t)
	}
	return out, nil
}

// MarkDone records a successful import.
func (r *InMemoryRepository) MarkDone(_ context.Context, tile Tile, spots int, took time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tiles[tile.Key()]
	if !ok {
		return ErrNoTiles
	}
	t.Status = StatusDone
	t.SpotsImported = spots
	t.ImportDuration = took
	t.LastError = ""
	t.NextTryAt = time.Time{}
	t.UpdatedAt = time.Now()
	return nil
}

// MarkFailed counts the attempt and schedules the retry.
func (r *InMemoryRepository) MarkFailed(_ context.Context, tile Tile, cause error, nextTry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tiles[tile.Key()]
	if !ok {
		return ErrNoTiles
	}
	t.Status = StatusFailed
	t.Attempts++
	t.LastError = cause.Error()
	if t.Exhausted() {
		t.NextTryAt = time.Time{}
	} else {
		t.NextTryAt = nextTry
	}
	t.UpdatedAt = time.Now()
	return nil
}

// CountByStatus summarises the queue.
func (r *InMemoryRepository) CountByStatus(_ context.Context) (StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var c StatusCounts
	for _, t := range r.tiles {
		switch t.Status {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusDone:
			c.Done++
		case StatusFailed:
			c.Failed++
		}
	}
	return c, nil
}

// Ensure InMemoryRepository implements Repository.
var _ Repository = (*InMemoryRepository)(nil)
