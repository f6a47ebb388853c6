package raster

import (
	"container/list"
	"sync"
)

// DefaultCacheSize holds 32 of the up to 72 (return_period × time_step)
// files.
const DefaultCacheSize = 32

// cache is a bounded LRU of loaded Grids, keyed by Scenario. Loaded files
// are immutable, so the cache itself is the only mutable state and is
// guarded by one mutex with short critical sections.
type cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[Scenario]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry struct {
	scenario Scenario
	grid     *Grid
}

func newCache(capacity int) *cache {
	if capacity < 1 {
		capacity = DefaultCacheSize
	}
	return &cache{
		capacity: capacity,
		entries:  make(map[Scenario]*list.Element),
		order:    list.New(),
	}
}

// get returns the cached Grid for scenario, promoting it to
// most-recently-used, or ok=false on a cache miss.
func (c *cache) get(scenario Scenario) (*Grid, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[scenario]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).grid, true
}

// put inserts grid for scenario, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *cache) put(scenario Scenario, grid *Grid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[scenario]; ok {
		el.Value.(*cacheEntry).grid = grid
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{scenario: scenario, grid: grid})
	c.entries[scenario] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).scenario)
	}
}

// len reports the current number of cached grids, used by reporting.
func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
