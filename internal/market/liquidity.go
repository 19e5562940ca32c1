package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pulsedeck/internal/cache"
	apperrors "pulsedeck/internal/errors"
	"pulsedeck/internal/logger"
	"pulsedeck/internal/provider"
)

// FRED series ids for the 2-year and 10-year constant maturity yields
const (
	series2Y  = "DGS2"
	series10Y = "DGS10"
)

// liquidityWindows maps API timeframes to history windows
var liquidityWindows = map[string]time.Duration{
	"1M": 31 * 24 * time.Hour,
	"3M": 92 * 24 * time.Hour,
	"6M": 183 * 24 * time.Hour,
	"1Y": 366 * 24 * time.Hour,
}

// ValidLiquidityTimeframe reports whether tf is an accepted timeframe
func ValidLiquidityTimeframe(tf string) bool {
	_, ok := liquidityWindows[tf]
	return ok
}

// LiquidityService derives a macro liquidity pulse from treasury yields.
type LiquidityService struct {
	cache    *cache.TieredCache
	provider SeriesProvider
	synth    *Synthesizer
	log      logger.Logger
	now      func() time.Time
}

// NewLiquidityService creates a liquidity orchestrator
func NewLiquidityService(c *cache.TieredCache, p SeriesProvider, synth *Synthesizer, log logger.Logger) *LiquidityService {
	return &LiquidityService{
		cache:    c,
		provider: p,
		synth:    synth,
		log:      log,
		now:      time.Now,
	}
}

// CacheKey returns the time-bucketed cache key a request resolves against
func (s *LiquidityService) CacheKey(timeframe string) string {
	return liquidityKey(timeframe, s.now())
}

// GetLiquidity resolves the liquidity pulse payload for a timeframe
func (s *LiquidityService) GetLiquidity(ctx context.Context, timeframe string) (*LiquidityResult, cache.Source, error) {
	if !ValidLiquidityTimeframe(timeframe) {
		return nil, "", apperrors.NewWithDetails(apperrors.ErrCodeInvalidInput,
			"invalid timeframe", timeframe, nil)
	}

	var result LiquidityResult

	spec := cache.FallbackSpec{
		Key:      liquidityKey(timeframe, s.now()),
		Tier:     cache.TierStable,
		DataType: liquidityDataType(timeframe),
	}

	source, err := s.cache.GetOrFetchWithFallback(ctx, spec, &result, func(ctx context.Context) (interface{}, error) {
		return s.fetchLive(ctx, timeframe)
	})
	if err != nil {
		s.log.Warn("liquidity fallback chain exhausted, serving synthetic data",
			"timeframe", timeframe, "error", err.Error())
		return s.synth.Liquidity(timeframe), cache.SourceSynthetic, nil
	}

	return &result, source, nil
}

func (s *LiquidityService) fetchLive(ctx context.Context, timeframe string) (*LiquidityResult, error) {
	window := liquidityWindows[timeframe]

	y2Series, err := s.provider.Series(ctx, series2Y, window)
	if err != nil {
		return nil, fmt.Errorf("liquidity: %s fetch failed: %w", series2Y, err)
	}
	y10Series, err := s.provider.Series(ctx, series10Y, window)
	if err != nil {
		return nil, fmt.Errorf("liquidity: %s fetch failed: %w", series10Y, err)
	}
	if len(y2Series) == 0 || len(y10Series) == 0 {
		return nil, fmt.Errorf("liquidity: empty yield series for %s", timeframe)
	}

	y2 := y2Series[len(y2Series)-1].Value
	y10 := y10Series[len(y10Series)-1].Value

	return buildLiquidityResult(timeframe, y2, y10, y10Series, s.now()), nil
}

// buildLiquidityResult derives the 2s10s spread, a 0-100 pulse score and
// a regime label. Spread wider than +50bp reads as easing, an inverted
// curve below -20bp as tightening.
func buildLiquidityResult(timeframe string, y2, y10 float64, history []provider.SeriesPoint, now time.Time) *LiquidityResult {
	sorted := make([]provider.SeriesPoint, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	spread := y10 - y2

	// Map the spread from [-1.0, +1.5] percentage points onto 0-100.
	score := 100 * clamp01((spread+1.0)/2.5)

	regime := "neutral"
	switch {
	case spread > 0.5:
		regime = "easing"
	case spread < -0.2:
		regime = "tightening"
	}

	return &LiquidityResult{
		Timeframe:  timeframe,
		Yield2Y:    y2,
		Yield10Y:   y10,
		Spread:     spread,
		History:    sorted,
		PulseScore: score,
		Regime:     regime,
		UpdatedAt:  now,
	}
}
