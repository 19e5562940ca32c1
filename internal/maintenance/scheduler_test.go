package maintenance

import (
	"path/filepath"
	"testing"
	"time"

	"pulsedeck/internal/golden"
	"pulsedeck/internal/logger"
)

type captureTiers struct {
	byTier map[string]int
	calls  int
}

func (c *captureTiers) RecordGoldenTiers(byTier map[string]int) {
	c.byTier = byTier
	c.calls++
}

func TestSweepGoldenRecordsTierCounts(t *testing.T) {
	dir := t.TempDir()
	g := golden.NewService(
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

	if err := g.Store("funding_btc", map[string]float64{"rate": 0.0001}, "live"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := g.Store("leverage_btc", map[string]float64{"score": 55}, "live"); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	rec := &captureTiers{}
	s := NewScheduler(nil, g, rec, logger.Global())

	s.sweepGolden()

	if rec.calls != 1 {
		t.Fatalf("Expected 1 recorder call, got %d", rec.calls)
	}
	if rec.byTier["fresh"] != 2 {
		t.Errorf("Expected 2 fresh entries recorded, got %d", rec.byTier["fresh"])
	}
}

func TestSweepGoldenWithoutRecorder(t *testing.T) {
	dir := t.TempDir()
	g := golden.NewService(
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

	s := NewScheduler(nil, g, nil, logger.Global())

	// Must not panic with no recorder wired.
	s.sweepGolden()
}
