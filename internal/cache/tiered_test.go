package cache

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pulsedeck/internal/golden"
	"pulsedeck/internal/logger"
)

type payload struct {
	Value string `json:"value"`
}

// failingStore simulates an unreachable primary store
type failingStore struct{}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("connection refused")
}
func (f *failingStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return errors.New("connection refused")
}
func (f *failingStore) Delete(ctx context.Context, key string) error {
	return errors.New("connection refused")
}
func (f *failingStore) MultiGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	return nil, errors.New("connection refused")
}
func (f *failingStore) MultiSet(ctx context.Context, pairs map[string][]byte, ttl time.Duration) error {
	return errors.New("connection refused")
}
func (f *failingStore) Ping(ctx context.Context) error { return errors.New("connection refused") }
func (f *failingStore) Close() error                   { return nil }

func testTiers() TierTable {
	return TierTable{
		Realtime:   60 * time.Second,
		Frequent:   30 * time.Minute,
		Stable:     4 * time.Hour,
		Historical: 24 * time.Hour,
	}
}

func newTestCache(golden *golden.Service) (*TieredCache, *MemoryStore) {
	memory := NewMemoryStore(100)
	tc := NewTieredCache(Options{
		Memory: memory,
		Golden: golden,
		Tiers:  testTiers(),
		Log:    logger.Global(),
	})
	return tc, memory
}

func TestTieredCacheTierTTL(t *testing.T) {
	tc, memory := newTestCache(nil)
	defer tc.Close()

	now := time.Now()
	memory.now = func() time.Time { return now }

	ctx := context.Background()

	if err := tc.SetTiered(ctx, "rt", payload{Value: "x"}, TierRealtime); err != nil {
		t.Fatalf("SetTiered failed: %v", err)
	}

	var got payload
	now = now.Add(30 * time.Second)
	if err := tc.Get(ctx, "rt", &got); err != nil {
		t.Fatalf("Expected hit at 30s, got %v", err)
	}
	if got.Value != "x" {
		t.Errorf("Expected 'x', got %q", got.Value)
	}

	now = now.Add(31 * time.Second)
	if err := tc.Get(ctx, "rt", &got); err != ErrCacheMiss {
		t.Errorf("Expected miss at 61s, got %v", err)
	}
}

func TestTieredCacheDegradesToMemory(t *testing.T) {
	memory := NewMemoryStore(100)
	tc := NewTieredCache(Options{
		Primary: &failingStore{},
		Memory:  memory,
		Tiers:   testTiers(),
		Log:     logger.Global(),
	})
	defer tc.Close()

	ctx := context.Background()

	// Set fails on the primary but lands in memory.
	if err := tc.Set(ctx, "k", payload{Value: "v"}, time.Minute); err != nil {
		t.Fatalf("Expected set to succeed via memory, got %v", err)
	}
	if !tc.isDegraded() {
		t.Error("Expected cache to be degraded after primary failure")
	}

	var got payload
	if err := tc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("Expected hit from memory while degraded, got %v", err)
	}
	if got.Value != "v" {
		t.Errorf("Expected 'v', got %q", got.Value)
	}
}

func TestGetOrFetchInvokesFetchOnce(t *testing.T) {
	tc, _ := newTestCache(nil)
	defer tc.Close()

	ctx := context.Background()
	calls := 0
	fetch := func(ctx context.Context) (interface{}, error) {
		calls++
		return payload{Value: "fetched"}, nil
	}

	var got payload
	if err := tc.GetOrFetch(ctx, "k", TierFrequent, &got, fetch); err != nil {
		t.Fatalf("GetOrFetch failed: %v", err)
	}
	if got.Value != "fetched" {
		t.Errorf("Expected 'fetched', got %q", got.Value)
	}

	if err := tc.GetOrFetch(ctx, "k", TierFrequent, &got, fetch); err != nil {
		t.Fatalf("Second GetOrFetch failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 fetch invocation, got %d", calls)
	}
}

func TestGetOrFetchPropagatesError(t *testing.T) {
	tc, _ := newTestCache(nil)
	defer tc.Close()

	wantErr := errors.New("provider down")
	var got payload
	err := tc.GetOrFetch(context.Background(), "k", TierFrequent, &got, func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected fetch error to propagate, got %v", err)
	}
}

func newTestGolden(t *testing.T) *golden.Service {
	t.Helper()
	dir := t.TempDir()
	return golden.NewService(
		filepath.Join(dir, "golden.json"),
		filepath.Join(dir, "golden.backup.json"),
		golden.Windows{
			Fresh:    6 * time.Hour,
			Stale:    24 * time.Hour,
			Archived: 72 * time.Hour,
			Fallback: 168 * time.Hour,
		},
		logger.Global(),
	)
}

func TestFallbackChainLiveWritesThrough(t *testing.T) {
	g := newTestGolden(t)
	tc, _ := newTestCache(g)
	defer tc.Close()

	spec := FallbackSpec{Key: "k1", Tier: TierFrequent, DataType: "test_data"}

	var got payload
	source, err := tc.GetOrFetchWithFallback(context.Background(), spec, &got, func(ctx context.Context) (interface{}, error) {
		return payload{Value: "live"}, nil
	})
	if err != nil {
		t.Fatalf("GetOrFetchWithFallback failed: %v", err)
	}
	if source != SourceLive {
		t.Errorf("Expected source live, got %s", source)
	}

	// The successful fetch must land in the golden dataset.
	entry, err := g.Retrieve("test_data", []golden.Tier{golden.TierFresh})
	if err != nil {
		t.Fatalf("Expected golden entry after live fetch, got %v", err)
	}
	var stored payload
	if err := json.Unmarshal(entry.Data, &stored); err != nil {
		t.Fatalf("Failed to decode golden entry: %v", err)
	}
	if stored.Value != "live" {
		t.Errorf("Expected golden entry 'live', got %q", stored.Value)
	}
}

func TestFallbackChainServesGoldenWhenFetchFails(t *testing.T) {
	g := newTestGolden(t)
	if err := g.Store("test_data", payload{Value: "last-good"}, "live"); err != nil {
		t.Fatalf("golden Store failed: %v", err)
	}

	tc, _ := newTestCache(g)
	defer tc.Close()

	spec := FallbackSpec{Key: "k2", Tier: TierFrequent, DataType: "test_data"}

	var got payload
	source, err := tc.GetOrFetchWithFallback(context.Background(), spec, &got, func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("all providers down")
	})
	if err != nil {
		t.Fatalf("Expected golden fallback, got error: %v", err)
	}
	if source != SourceGolden {
		t.Errorf("Expected source golden, got %s", source)
	}
	if got.Value != "last-good" {
		t.Errorf("Expected 'last-good', got %q", got.Value)
	}
}

func TestFallbackChainWidensToArchivedTiers(t *testing.T) {
	g := newTestGolden(t)

	// Seed an archived entry directly; fresh/stale lookups must skip it.
	raw, _ := json.Marshal(payload{Value: "archived"})
	entry := &golden.Entry{
		DataType:   "test_data",
		Data:       raw,
		Timestamp:  time.Now().Add(-48 * time.Hour),
		Tier:       golden.TierArchived,
		ExpiresAt:  time.Now().Add(24 * time.Hour),
		Source:     "live",
		DataPoints: 0,
	}
	dataset, _ := json.Marshal(map[string]*golden.Entry{"test_data": entry})
	if _, err := g.Import(dataset); err != nil {
		t.Fatalf("golden Import failed: %v", err)
	}

	tc, _ := newTestCache(g)
	defer tc.Close()

	spec := FallbackSpec{Key: "k3", Tier: TierFrequent, DataType: "test_data"}

	var got payload
	source, err := tc.GetOrFetchWithFallback(context.Background(), spec, &got, func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("all providers down")
	})
	if err != nil {
		t.Fatalf("Expected archived golden fallback, got error: %v", err)
	}
	if source != SourceGoldenStale {
		t.Errorf("Expected source golden-stale, got %s", source)
	}
	if got.Value != "archived" {
		t.Errorf("Expected 'archived', got %q", got.Value)
	}
}

func TestFallbackChainPropagatesFetchError(t *testing.T) {
	tc, _ := newTestCache(nil)
	defer tc.Close()

	wantErr := errors.New("total outage")
	spec := FallbackSpec{Key: "k4", Tier: TierFrequent, DataType: "test_data"}

	var got payload
	_, err := tc.GetOrFetchWithFallback(context.Background(), spec, &got, func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected fetch error to propagate, got %v", err)
	}
}

func TestMetricsCounting(t *testing.T) {
	tc, _ := newTestCache(nil)
	defer tc.Close()

	ctx := context.Background()

	var got payload
	tc.Get(ctx, "missing", &got)
	tc.Set(ctx, "k", payload{Value: "v"}, time.Minute)
	tc.Get(ctx, "k", &got)
	tc.Get(ctx, "k", &got)

	snap := tc.Metrics()
	if snap.Hits != 2 {
		t.Errorf("Expected 2 hits, got %d", snap.Hits)
	}
	if snap.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", snap.Misses)
	}
	if snap.HitRate < 0.66 || snap.HitRate > 0.67 {
		t.Errorf("Expected hit rate ~0.667, got %f", snap.HitRate)
	}

	tc.ResetMetrics()
	if snap := tc.Metrics(); snap.Hits != 0 || snap.Misses != 0 {
		t.Errorf("Expected zeroed metrics after reset, got %+v", snap)
	}
}

func TestMultiSetIsolatesMarshalFailure(t *testing.T) {
	tc, _ := newTestCache(nil)
	defer tc.Close()

	ctx := context.Background()

	values := map[string]interface{}{
		"good":   payload{Value: "ok"},
		"broken": make(chan int),
	}
	if err := tc.MultiSet(ctx, values, TierFrequent); err == nil {
		t.Fatal("Expected an error for the unencodable value")
	}

	found := tc.MultiGet(ctx, []string{"good", "broken"})
	if len(found) != 1 {
		t.Fatalf("Expected 1 key found, got %d", len(found))
	}
	raw, ok := found["good"]
	if !ok {
		t.Fatal("Expected 'good' to be written despite the sibling failure")
	}
	var got payload
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Value != "ok" {
		t.Errorf("Expected 'ok', got %q", got.Value)
	}
}
