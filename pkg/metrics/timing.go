// Package metrics provides performance instrumentation for cascadegrid.
//
// Timing metrics cover the grid's hot paths and cache metrics track the
// windowed view's block cache. Both are reported by the stats overlay and
// by --stats. Collection is on unless CASCADE_METRICS=0.
//
//	func (c *Controller) Select(...) {
//	    defer metrics.Timer(metrics.Select)()
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled = os.Getenv("CASCADE_METRICS") != "0"

// Enabled returns whether metrics collection is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled turns collection on or off.
func SetEnabled(e bool) {
	enabled = e
}

// TimingMetric accumulates durations of one operation. Safe for
// concurrent use.
type TimingMetric struct {
	name  string
	count atomic.Int64
	total atomic.Int64 // ns
	max   atomic.Int64 // ns
}

// TimingStats is a point-in-time view of a TimingMetric.
type TimingStats struct {
	Name  string  `json:"name"`
	Count int64   `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	MaxMs float64 `json:"max_ms"`
}

var timings []*TimingMetric

// register adds a metric to the set reported by AllTimingStats.
func register(name string) *TimingMetric {
	m := &TimingMetric{name: name}
	timings = append(timings, m)
	return m
}

// Grid operations, in reporting order.
var (
	Select       = register("select")
	CreateOption = register("create_option")
	AppendRows   = register("append_rows")
	WindowFetch  = register("window_fetch")
	SeedLoad     = register("seed_load")
	UIRender     = register("ui_render")
)

// Record adds one measurement.
func (m *TimingMetric) Record(d time.Duration) {
	if !enabled {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.total.Add(ns)
	for old := m.max.Load(); ns > old; old = m.max.Load() {
		if m.max.CompareAndSwap(old, ns) {
			break
		}
	}
}

// Stats reads the metric.
func (m *TimingMetric) Stats() TimingStats {
	s := TimingStats{Name: m.name, Count: m.count.Load()}
	if s.Count > 0 {
		s.AvgMs = float64(m.total.Load()/s.Count) / 1e6
	}
	s.MaxMs = float64(m.max.Load()) / 1e6
	return s
}

// Timer starts a measurement; call the result to record it.
func Timer(m *TimingMetric) func() {
	if !enabled || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.Record(time.Since(start))
	}
}

// AllTimingStats returns stats for the registered metrics that have data.
func AllTimingStats() []TimingStats {
	stats := make([]TimingStats, 0, len(timings))
	for _, m := range timings {
		if m.count.Load() > 0 {
			stats = append(stats, m.Stats())
		}
	}
	return stats
}
