// Package observability collects lightweight in-process metrics for the
// stats service. This is a simple local alternative to an external
// monitoring stack.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects counters for the daily-stats pipeline.
type Metrics struct {
	mu sync.Mutex

	// Counters
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	sourceQueries atomic.Int64
	failures      atomic.Int64

	// Aggregation duration samples, bounded FIFO.
	durations    []time.Duration
	maxDurations int
}

// NewMetrics creates a new metrics collector keeping at most maxDurations
// duration samples.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordCacheHit records a rollup served from cache.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a rollup that had to be computed.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordSourceQuery records one query issued to the record source.
func (m *Metrics) RecordSourceQuery() {
	m.sourceQueries.Add(1)
}

// RecordFailure records a failed aggregation.
func (m *Metrics) RecordFailure() {
	m.failures.Add(1)
}

// RecordDuration records how long one aggregation took.
func (m *Metrics) RecordDuration(duration time.Duration) {
	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// CacheHits returns the number of cache hits.
func (m *Metrics) CacheHits() int64 {
	return m.cacheHits.Load()
}

// CacheMisses returns the number of cache misses.
func (m *Metrics) CacheMisses() int64 {
	return m.cacheMisses.Load()
}

// SourceQueries returns the number of record-source queries issued.
func (m *Metrics) SourceQueries() int64 {
	return m.sourceQueries.Load()
}

// Failures returns the number of failed aggregations.
func (m *Metrics) Failures() int64 {
	return m.failures.Load()
}

// HitRate returns the cache hit ratio in [0, 1].
func (m *Metrics) HitRate() float64 {
	hits := m.cacheHits.Load()
	total := hits + m.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// AvgDuration returns the mean of the retained aggregation durations.
func (m *Metrics) AvgDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range m.durations {
		total += d
	}
	return total / time.Duration(len(m.durations))
}
