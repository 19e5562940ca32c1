package cache

import (
	"sync/atomic"
	"time"
)

// Metrics tracks process-local cache counters. Lifecycle is process
// lifetime; counters are reset on demand, never persisted.
type Metrics struct {
	hits   int64
	misses int64
	errors int64
}

// MetricsSnapshot is a point-in-time copy of the counters
type MetricsSnapshot struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Errors    int64     `json:"errors"`
	HitRate   float64   `json:"hit_rate"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMetrics creates a zeroed metrics counter set
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordHit increments the hit counter
func (m *Metrics) RecordHit() {
	atomic.AddInt64(&m.hits, 1)
}

// RecordMiss increments the miss counter
func (m *Metrics) RecordMiss() {
	atomic.AddInt64(&m.misses, 1)
}

// RecordError increments the error counter
func (m *Metrics) RecordError() {
	atomic.AddInt64(&m.errors, 1)
}

// Snapshot returns a copy of the counters with a computed hit rate
func (m *Metrics) Snapshot() MetricsSnapshot {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return MetricsSnapshot{
		Hits:      hits,
		Misses:    misses,
		Errors:    atomic.LoadInt64(&m.errors),
		HitRate:   hitRate,
		Timestamp: time.Now(),
	}
}

// Reset zeroes all counters
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
	atomic.StoreInt64(&m.errors, 0)
}
