package hazard

import (
	"sync"
	"time"
)

// DefaultScoutTTL and DefaultFloodTTL are the cache lifetimes: crowd
// reports go stale faster than official telemetry.
const (
	DefaultScoutTTL = 45 * time.Minute
	DefaultFloodTTL = 90 * time.Minute
)

// Cache holds the flood_data_cache and scout_data_cache from the data
// model: the latest HazardReading per location, and an ordered list of
// ScoutReports. One mutex guards both, since they are always evicted and
// read together at the start of fusion.
type Cache struct {
	mu sync.Mutex

	floodTTL time.Duration
	scoutTTL time.Duration

	flood map[string]HazardReading
	scout []ScoutReport
}

// NewCache returns an empty Cache with the given TTLs.
func NewCache(scoutTTL, floodTTL time.Duration) *Cache {
	return &Cache{
		floodTTL: floodTTL,
		scoutTTL: scoutTTL,
		flood:    make(map[string]HazardReading),
	}
}

// UpsertReadings merges a HazardReading batch into the flood cache.
// Duplicate location_id within the same batch keeps the latest Timestamp,
// ties broken by order of arrival within the slice.
func (c *Cache) UpsertReadings(readings []HazardReading) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range readings {
		existing, ok := c.flood[r.LocationID]
		if !ok || r.Timestamp.After(existing.Timestamp) || r.Timestamp.Equal(existing.Timestamp) {
			c.flood[r.LocationID] = r
		}
	}
}

// AppendScoutReports appends to the scout cache; entries are evicted only
// by TTL, never by insertion order alone.
func (c *Cache) AppendScoutReports(reports []ScoutReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scout = append(c.scout, reports...)
}

// EvictExpired drops cache entries older than their TTL. now is supplied
// by the caller (the tick timestamp) rather than
// read from the clock, so a tick's eviction pass is deterministic and
// reproducible in tests.
func (c *Cache) EvictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, r := range c.flood {
		if now.Sub(r.Timestamp) > c.floodTTL {
			delete(c.flood, id)
		}
	}

	kept := c.scout[:0]
	for _, r := range c.scout {
		if now.Sub(r.Timestamp) <= c.scoutTTL {
			kept = append(kept, r)
		}
	}
	c.scout = kept
}

// Readings returns a snapshot slice of all cached HazardReadings.
func (c *Cache) Readings() []HazardReading {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]HazardReading, 0, len(c.flood))
	for _, r := range c.flood {
		out = append(out, r)
	}
	return out
}

// ScoutReports returns a snapshot slice of all cached ScoutReports.
func (c *Cache) ScoutReports() []ScoutReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ScoutReport, len(c.scout))
	copy(out, c.scout)
	return out
}

// Reset clears both caches, used by the orchestrator's reset() command.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flood = make(map[string]HazardReading)
	c.scout = nil
}
