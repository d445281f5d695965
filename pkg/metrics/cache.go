package metrics

import "sync/atomic"

// CacheMetric counts hits, misses and evictions for a cache.
type CacheMetric struct {
	name      string
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

func newCacheMetric(name string) *CacheMetric {
	return &CacheMetric{name: name}
}

// Hit records a cache hit.
func (c *CacheMetric) Hit() {
	if enabled {
		c.hits.Add(1)
	}
}

// Miss records a cache miss.
func (c *CacheMetric) Miss() {
	if enabled {
		c.misses.Add(1)
	}
}

// Evict records an eviction.
func (c *CacheMetric) Evict() {
	if enabled {
		c.evictions.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (c *CacheMetric) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return CacheStats{
		Name:      c.name,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRatio:  ratio,
	}
}

// CacheStats holds a snapshot of cache counters.
type CacheStats struct {
	Name      string  `json:"name"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRatio  float64 `json:"hit_ratio"`
}

// BlockCache tracks the windowed view's block cache.
var BlockCache = newCacheMetric("block_cache")

// AllCacheStats returns stats for all cache metrics.
func AllCacheStats() []CacheStats {
	all := []*CacheMetric{BlockCache}
	stats := make([]CacheStats, 0, len(all))
	for _, m := range all {
		stats = append(stats, m.Stats())
	}
	return stats
}

// Snapshot bundles every metric for JSON output.
type Snapshot struct {
	Timings []TimingStats `json:"timings"`
	Caches  []CacheStats  `json:"caches"`
}

// TakeSnapshot collects the current state of all metrics.
func TakeSnapshot() Snapshot {
	return Snapshot{
		Timings: AllTimingStats(),
		Caches:  AllCacheStats(),
	}
}
