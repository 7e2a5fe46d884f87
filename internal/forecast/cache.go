package forecast

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// SnapshotFetcher is the upstream dependency of the cache. *Fetcher satisfies
// it; tests substitute fakes.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (*Snapshot, error)
}

// Flags exposes the runtime switches the cache consults.
// *featureflags.Service satisfies it.
type Flags interface {
	// CachedOnlyForecasts reports whether upstream fetches are suspended,
	// serving whatever is cached regardless of age.
	CachedOnlyForecasts(ctx context.Context) bool
}

// CacheConfig holds configuration for the forecast cache.
type CacheConfig struct {
	// Fetcher retrieves snapshots on miss or expiry (required).
	Fetcher SnapshotFetcher

	// Logger for cache operations.
	Logger zerolog.Logger

	// Flags for runtime switches (optional).
	Flags Flags

	// History receives the hours of every successful fetch (optional).
	// Recording failures are logged, never surfaced to callers.
	History HistoryRepository

	// TTL is the freshness window per entry (default: 6 hours).
	TTL time.Duration

	// IdleEviction drops entries not read for this long (default: 7 days).
	// Eviction is best-effort and never required for correctness.
	IdleEviction time.Duration
}

// Cache is the per-location forecast store. It coalesces concurrent fetches
// for the same location onto a single upstream call and falls back to the
// last known snapshot when a refresh fails.
type Cache struct {
	fetcher      SnapshotFetcher
	logger       zerolog.Logger
	flags        Flags
	history      HistoryRepository
	ttl          time.Duration
	idleEviction time.Duration

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	snapshot *Snapshot
	lastRead time.Time
}

// NewCache creates a new forecast cache.
func NewCache(cfg CacheConfig) *Cache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 6 * time.Hour
	}

	idleEviction := cfg.IdleEviction
	if idleEviction == 0 {
		idleEviction = 7 * 24 * time.Hour
	}

	return &Cache{
		fetcher:      cfg.Fetcher,
		logger:       cfg.Logger,
		flags:        cfg.Flags,
		history:      cfg.History,
		ttl:          ttl,
		idleEviction: idleEviction,
		entries:      make(map[string]*cacheEntry),
	}
}

// Get returns the forecast snapshot for a location, fetching from upstream
// when the cached entry is absent or expired. Concurrent callers for the same
// id share one in-flight fetch. On fetch failure the previous snapshot, if
// any, is returned marked stale; an error surfaces only when there is nothing
// to degrade to.
func (c *Cache) Get(ctx context.Context, id string, lat, lon float64) (*Snapshot, error) {
	now := time.Now()

	if snap := c.freshSnapshot(id, now); snap != nil {
		return snap, nil
	}

	if c.flags != nil && c.flags.CachedOnlyForecasts(ctx) {
		if snap := c.staleSnapshot(id, now); snap != nil {
			return snap, nil
		}
		// No cached data at all; fall through and fetch anyway.
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		// A previous flight may have refreshed the entry while this caller
		// waited on the group.
		if snap := c.freshSnapshot(id, time.Now()); snap != nil {
			return snap, nil
		}

		// A fetch runs to completion or timeout even if the triggering
		// caller goes away, so its result can serve coalesced callers and
		// populate the cache for the next one.
		fetchCtx := context.WithoutCancel(ctx)
		snap, err := c.fetcher.Fetch(fetchCtx, lat, lon)
		if err != nil {
			if fallback := c.staleSnapshot(id, time.Now()); fallback != nil {
				c.logger.Warn().
					Str("location", id).
					Err(err).
					Time("fetched_at", fallback.FetchedAt).
					Msg("refresh failed, serving stale forecast")
				return fallback, nil
			}
			c.logger.Error().Str("location", id).Err(err).Msg("forecast fetch failed with no fallback")
			return nil, err
		}

		stamped := *snap
		stamped.LocationID = id
		stamped.State = StateFresh
		c.store(id, &stamped)

		if c.history != nil {
			if err := c.history.RecordHours(fetchCtx, id, stamped.Hours); err != nil {
				c.logger.Warn().Str("location", id).Err(err).Msg("failed to record forecast history")
			}
		}
		return &stamped, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// freshSnapshot returns the stored snapshot if it is within TTL.
func (c *Cache) freshSnapshot(id string, now time.Time) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || now.Sub(e.snapshot.FetchedAt) >= c.ttl {
		return nil
	}
	e.lastRead = now
	return e.snapshot
}

// staleSnapshot returns whatever is stored, marked stale, regardless of age.
// Snapshots are immutable, so the stale marker goes on a copy.
func (c *Cache) staleSnapshot(id string, now time.Time) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil
	}
	e.lastRead = now

	stale := *e.snapshot
	stale.State = StateStale
	return &stale
}

func (c *Cache) store(id string, snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = &cacheEntry{snapshot: snap, lastRead: time.Now()}
	c.evictIdleLocked(time.Now())
}

// ExpiringWithin returns ids of entries whose remaining freshness is below d,
// including already expired entries. The background refresher uses this for
// its low-water scan.
func (c *Cache) ExpiringWithin(d time.Duration) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var ids []string
	for id, e := range c.entries {
		remaining := c.ttl - now.Sub(e.snapshot.FetchedAt)
		if remaining < d {
			ids = append(ids, id)
		}
	}
	return ids
}

// Contains reports whether any snapshot, fresh or expired, exists for id.
func (c *Cache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// EvictIdle drops entries not read within the idle window and returns how
// many were removed.
func (c *Cache) EvictIdle() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictIdleLocked(time.Now())
}

func (c *Cache) evictIdleLocked(now time.Time) int {
	evicted := 0
	for id, e := range c.entries {
		if now.Sub(e.lastRead) > c.idleEviction {
			delete(c.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		c.logger.Debug().Int("evicted", evicted).Msg("evicted idle forecast entries")
	}
	return evicted
}

// Stats describes the cache contents.
type Stats struct {
	Entries      int
	FreshEntries int
}

// CacheStats returns current cache statistics.
func (c *Cache) CacheStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	stats := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		if now.Sub(e.snapshot.FetchedAt) < c.ttl {
			stats.FreshEntries++
		}
	}
	return stats
}
