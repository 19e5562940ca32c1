// Package maintenance runs the background housekeeping jobs: golden
// dataset tier sweeps and primary cache health probes.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"pulsedeck/internal/cache"
	"pulsedeck/internal/golden"
	"pulsedeck/internal/logger"
)

// TierRecorder receives golden dataset tier counts after each sweep
type TierRecorder interface {
	RecordGoldenTiers(byTier map[string]int)
}

// Scheduler owns the cron runner
type Scheduler struct {
	cron     *cron.Cron
	cache    *cache.TieredCache
	golden   *golden.Service
	recorder TierRecorder
	log      logger.Logger
}

// NewScheduler creates the maintenance scheduler. recorder may be nil.
func NewScheduler(c *cache.TieredCache, g *golden.Service, recorder TierRecorder, log logger.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		cache:    c,
		golden:   g,
		recorder: recorder,
		log:      log,
	}
}

// Start registers and starts the background jobs
func (s *Scheduler) Start() error {
	// Sweep golden dataset tiers so demotion happens even for entries
	// nobody reads.
	if _, err := s.cron.AddFunc("@every 15m", s.sweepGolden); err != nil {
		return err
	}

	// Probe the primary store so the cache recovers from degraded mode
	// without waiting for request traffic.
	if _, err := s.cron.AddFunc("@every 1m", s.probeCache); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("maintenance scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("maintenance scheduler stopped")
}

func (s *Scheduler) sweepGolden() {
	removed, err := s.golden.Cleanup()
	if err != nil {
		s.log.Error("golden dataset sweep failed", "error", err.Error())
		return
	}
	if removed > 0 {
		s.log.Info("golden dataset sweep removed expired entries", "removed", removed)
	}

	if s.recorder != nil {
		stats := s.golden.Stats()
		byTier := make(map[string]int, len(stats.ByTier))
		for tier, count := range stats.ByTier {
			byTier[string(tier)] = count
		}
		s.recorder.RecordGoldenTiers(byTier)
	}
}

func (s *Scheduler) probeCache() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := s.cache.HealthCheck(ctx)
	if status.PrimaryConfigured && !status.PrimaryReachable {
		s.log.Warn("primary cache store unreachable")
	}
}
