package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pulsedeck/internal/golden"
	"pulsedeck/internal/logger"
)

// Tier is a named freshness bucket mapping to a fixed TTL
type Tier string

const (
	TierRealtime   Tier = "realtime"
	TierFrequent   Tier = "frequent"
	TierStable     Tier = "stable"
	TierHistorical Tier = "historical"
)

// TierTable maps tiers to TTLs. Values are deployment policy, injected from
// configuration.
type TierTable struct {
	Realtime   time.Duration
	Frequent   time.Duration
	Stable     time.Duration
	Historical time.Duration
}

// TTL resolves a tier to its configured TTL
func (t TierTable) TTL(tier Tier) time.Duration {
	switch tier {
	case TierRealtime:
		return t.Realtime
	case TierFrequent:
		return t.Frequent
	case TierStable:
		return t.Stable
	case TierHistorical:
		return t.Historical
	default:
		return t.Frequent
	}
}

// Source identifies which layer of the fallback chain produced a value
type Source string

const (
	SourceCache       Source = "cache"
	SourceGolden      Source = "golden"
	SourceGoldenStale Source = "golden-stale"
	SourceLive        Source = "live"
	SourceSynthetic   Source = "synthetic"
)

// FetchFunc computes a value on cache miss, typically by calling external
// providers. Its error propagates to the caller once all fallback tiers are
// exhausted; this is the one place callers must handle an error.
type FetchFunc func(ctx context.Context) (interface{}, error)

// FallbackSpec names the key, TTL tier and golden dataset slot for a
// layered fetch.
type FallbackSpec struct {
	Key      string
	Tier     Tier
	DataType string
}

// Recorder receives cache outcome events, e.g. for Prometheus export.
type Recorder interface {
	CacheHit(layer string)
	CacheMiss()
	CacheError()
}

// TieredCache is the cache façade: a primary store (usually Redis) with
// in-process degradation, tier-based TTL policy, process-local metrics and
// the golden dataset fallback ladder.
type TieredCache struct {
	primary  Store // may be nil when Redis is disabled
	memory   *MemoryStore
	golden   *golden.Service // may be nil
	tiers    TierTable
	metrics  *Metrics
	recorder Recorder
	log      logger.Logger

	mu       sync.RWMutex
	degraded bool
}

// Options configures a TieredCache
type Options struct {
	Primary  Store
	Memory   *MemoryStore
	Golden   *golden.Service
	Tiers    TierTable
	Recorder Recorder
	Log      logger.Logger
}

// NewTieredCache creates a tiered cache service
func NewTieredCache(opts Options) *TieredCache {
	memory := opts.Memory
	if memory == nil {
		memory = NewMemoryStore(0)
	}
	log := opts.Log
	if log == nil {
		log = logger.Global()
	}
	return &TieredCache{
		primary:  opts.Primary,
		memory:   memory,
		golden:   opts.Golden,
		tiers:    opts.Tiers,
		metrics:  NewMetrics(),
		recorder: opts.Recorder,
		log:      log,
	}
}

// Get reads a key into dest. Returns ErrCacheMiss when absent or expired.
// Primary store errors degrade to the memory store and still count toward
// the metrics; they never propagate.
func (c *TieredCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.getBytes(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *TieredCache) getBytes(ctx context.Context, key string) ([]byte, error) {
	if c.primary != nil && !c.isDegraded() {
		data, err := c.primary.Get(ctx, key)
		if err == nil {
			c.recordHit("primary")
			return data, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.recordError()
			c.setDegraded(true)
			// fall through to memory
		} else {
			// Primary answered authoritatively: check memory before
			// declaring a miss, writes may have landed there only.
			if data, memErr := c.memory.Get(ctx, key); memErr == nil {
				c.recordHit("memory")
				return data, nil
			}
			c.recordMiss()
			return nil, ErrCacheMiss
		}
	}

	data, err := c.memory.Get(ctx, key)
	if err == nil {
		c.recordHit("memory")
		return data, nil
	}
	c.recordMiss()
	return nil, ErrCacheMiss
}

// Set writes a value with an explicit TTL. The memory store is always
// written; the primary store too when reachable. Returns an error only when
// both layers fail.
func (c *TieredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal value for %s: %w", key, err)
	}
	return c.setBytes(ctx, key, data, ttl)
}

func (c *TieredCache) setBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var primaryErr error
	if c.primary != nil {
		primaryErr = c.primary.Set(ctx, key, data, ttl)
		if primaryErr != nil {
			c.recordError()
			c.setDegraded(true)
		} else {
			c.setDegraded(false)
		}
	}

	memErr := c.memory.Set(ctx, key, data, ttl)
	if memErr != nil && primaryErr != nil {
		return fmt.Errorf("cache: set %s failed: primary: %v, memory: %v", key, primaryErr, memErr)
	}
	return nil
}

// SetTiered resolves the tier to a TTL and calls Set
func (c *TieredCache) SetTiered(ctx context.Context, key string, value interface{}, tier Tier) error {
	return c.Set(ctx, key, value, c.tiers.TTL(tier))
}

// Delete removes a key from both layers
func (c *TieredCache) Delete(ctx context.Context, key string) error {
	if c.primary != nil {
		if err := c.primary.Delete(ctx, key); err != nil {
			c.recordError()
		}
	}
	return c.memory.Delete(ctx, key)
}

// GetOrFetch implements cache-aside: return the cached value, otherwise
// invoke fetch, store the result under the tier's TTL, and return it. A
// fetch error propagates unchanged.
func (c *TieredCache) GetOrFetch(ctx context.Context, key string, tier Tier, dest interface{}, fetch FetchFunc) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal fetched value for %s: %w", key, err)
	}

	if err := c.setBytes(ctx, key, data, c.tiers.TTL(tier)); err != nil {
		c.log.Warn("cache write-back failed", "key", key, "error", err.Error())
	}

	return json.Unmarshal(data, dest)
}

// GetOrFetchWithFallback evaluates the full resolution chain in order:
// cache, golden dataset (fresh/stale), live fetch, then golden again
// accepting archived/fallback tiers. On fetch success the result is written
// through to both the cache and the golden dataset. Only when every step
// fails does the fetch error propagate.
func (c *TieredCache) GetOrFetchWithFallback(ctx context.Context, spec FallbackSpec, dest interface{}, fetch FetchFunc) (Source, error) {
	if err := c.Get(ctx, spec.Key, dest); err == nil {
		return SourceCache, nil
	}

	if c.golden != nil {
		if entry, err := c.golden.Retrieve(spec.DataType, []golden.Tier{golden.TierFresh, golden.TierStale}); err == nil {
			if err := json.Unmarshal(entry.Data, dest); err == nil {
				return SourceGolden, nil
			}
		}
	}

	value, fetchErr := fetch(ctx)
	if fetchErr == nil {
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("cache: failed to marshal fetched value for %s: %w", spec.Key, err)
		}

		if err := c.setBytes(ctx, spec.Key, data, c.tiers.TTL(spec.Tier)); err != nil {
			c.log.Warn("cache write-back failed", "key", spec.Key, "error", err.Error())
		}
		if c.golden != nil {
			if err := c.golden.Store(spec.DataType, value, "live"); err != nil {
				c.log.Warn("golden write-through failed", "dataType", spec.DataType, "error", err.Error())
			}
		}

		return SourceLive, json.Unmarshal(data, dest)
	}

	// Live fetch failed: widen the acceptable golden tiers before giving up.
	if c.golden != nil {
		if entry, err := c.golden.Retrieve(spec.DataType, []golden.Tier{golden.TierArchived, golden.TierFallback}); err == nil {
			if err := json.Unmarshal(entry.Data, dest); err == nil {
				c.log.Warn("serving archived golden data", "dataType", spec.DataType)
				return SourceGoldenStale, nil
			}
		}
	}

	return "", fetchErr
}

// MultiGet reads several keys at once, preserving per-key independence.
// Returns found keys only.
func (c *TieredCache) MultiGet(ctx context.Context, keys []string) map[string]json.RawMessage {
	found := make(map[string][]byte)

	if c.primary != nil && !c.isDegraded() {
		if result, err := c.primary.MultiGet(ctx, keys); err == nil {
			found = result
		} else {
			c.recordError()
			c.setDegraded(true)
		}
	}

	for _, key := range keys {
		if _, ok := found[key]; ok {
			continue
		}
		if data, err := c.memory.Get(ctx, key); err == nil {
			found[key] = data
		}
	}

	result := make(map[string]json.RawMessage, len(found))
	for _, key := range keys {
		if data, ok := found[key]; ok {
			c.recordHit("multi")
			result[key] = json.RawMessage(data)
		} else {
			c.recordMiss()
		}
	}
	return result
}

// MultiSet writes several values under one tier. One value's marshal
// failure does not block the rest.
func (c *TieredCache) MultiSet(ctx context.Context, values map[string]interface{}, tier Tier) error {
	pairs := make(map[string][]byte, len(values))
	var firstErr error
	for key, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("cache: failed to marshal %s: %w", key, err)
			}
			continue
		}
		pairs[key] = data
	}

	ttl := c.tiers.TTL(tier)
	if c.primary != nil {
		if err := c.primary.MultiSet(ctx, pairs, ttl); err != nil {
			c.recordError()
			c.setDegraded(true)
		}
	}
	if err := c.memory.MultiSet(ctx, pairs, ttl); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Metrics returns the current counter snapshot
func (c *TieredCache) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// ResetMetrics zeroes the counters
func (c *TieredCache) ResetMetrics() {
	c.metrics.Reset()
}

// HealthStatus reports cache reachability plus current metrics
type HealthStatus struct {
	PrimaryConfigured bool            `json:"primary_configured"`
	PrimaryReachable  bool            `json:"primary_reachable"`
	Degraded          bool            `json:"degraded"`
	MemoryItems       int             `json:"memory_items"`
	Metrics           MetricsSnapshot `json:"metrics"`
}

// HealthCheck pings the primary store and reports status
func (c *TieredCache) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		PrimaryConfigured: c.primary != nil,
		MemoryItems:       c.memory.Size(),
		Metrics:           c.metrics.Snapshot(),
	}

	if c.primary != nil {
		if err := c.primary.Ping(ctx); err == nil {
			status.PrimaryReachable = true
			c.setDegraded(false)
		} else {
			c.setDegraded(true)
		}
	}

	status.Degraded = c.isDegraded()
	return status
}

// Close releases both store layers
func (c *TieredCache) Close() error {
	var errs []error
	if c.primary != nil {
		if err := c.primary.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.memory.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("cache close: %v", errs)
	}
	return nil
}

func (c *TieredCache) isDegraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

func (c *TieredCache) setDegraded(degraded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.degraded != degraded {
		c.degraded = degraded
		if degraded {
			c.log.Warn("cache degraded to in-memory store")
		} else {
			c.log.Info("cache primary store recovered")
		}
	}
}

func (c *TieredCache) recordHit(layer string) {
	c.metrics.RecordHit()
	if c.recorder != nil {
		c.recorder.CacheHit(layer)
	}
}

func (c *TieredCache) recordMiss() {
	c.metrics.RecordMiss()
	if c.recorder != nil {
		c.recorder.CacheMiss()
	}
}

func (c *TieredCache) recordError() {
	c.metrics.RecordError()
	if c.recorder != nil {
		c.recorder.CacheError()
	}
}
