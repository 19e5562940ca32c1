package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pulsedeck/internal/cache"
	"pulsedeck/internal/logger"
	"pulsedeck/internal/provider"
)

const etfFlowLookbackDays = 30

// ETFFlowService serves daily spot ETF net flow history.
type ETFFlowService struct {
	cache    *cache.TieredCache
	provider ETFFlowProvider
	synth    *Synthesizer
	log      logger.Logger
	now      func() time.Time
}

// NewETFFlowService creates an ETF flow orchestrator
func NewETFFlowService(c *cache.TieredCache, p ETFFlowProvider, synth *Synthesizer, log logger.Logger) *ETFFlowService {
	return &ETFFlowService{
		cache:    c,
		provider: p,
		synth:    synth,
		log:      log,
		now:      time.Now,
	}
}

// CacheKey returns the time-bucketed cache key a request resolves against
func (s *ETFFlowService) CacheKey(asset string) string {
	return etfFlowKey(asset, s.now())
}

// GetFlows resolves the flow payload for an asset (btc or eth)
func (s *ETFFlowService) GetFlows(ctx context.Context, asset string) (*ETFFlowResult, cache.Source, error) {
	var result ETFFlowResult

	spec := cache.FallbackSpec{
		Key:      etfFlowKey(asset, s.now()),
		Tier:     cache.TierStable,
		DataType: etfFlowDataType(asset),
	}

	source, err := s.cache.GetOrFetchWithFallback(ctx, spec, &result, func(ctx context.Context) (interface{}, error) {
		flows, err := s.provider.Flows(ctx, asset, etfFlowLookbackDays)
		if err != nil {
			return nil, err
		}
		if len(flows) == 0 {
			return nil, fmt.Errorf("etf: provider returned no flows for %s", asset)
		}
		return buildETFFlowResult(asset, flows, s.now()), nil
	})
	if err != nil {
		s.log.Warn("etf flow fallback chain exhausted, serving synthetic data",
			"asset", asset, "error", err.Error())
		return s.synth.ETFFlows(asset), cache.SourceSynthetic, nil
	}

	return &result, source, nil
}

// buildETFFlowResult sorts flows by date and derives the 5-day total and
// trend. Trend is "inflow" when all of the last 5 days are positive,
// "outflow" when all are negative, otherwise "mixed".
func buildETFFlowResult(asset string, flows []provider.ETFFlow, now time.Time) *ETFFlowResult {
	sorted := make([]provider.ETFFlow, len(flows))
	copy(sorted, flows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	start := len(sorted) - 5
	if start < 0 {
		start = 0
	}
	recent := sorted[start:]

	var total float64
	positive, negative := 0, 0
	for _, f := range recent {
		total += f.NetFlowUSD
		if f.NetFlowUSD > 0 {
			positive++
		} else if f.NetFlowUSD < 0 {
			negative++
		}
	}

	trend := "mixed"
	if positive == len(recent) && len(recent) > 0 {
		trend = "inflow"
	} else if negative == len(recent) && len(recent) > 0 {
		trend = "outflow"
	}

	return &ETFFlowResult{
		Asset:     asset,
		Flows:     sorted,
		Total5d:   total,
		Trend:     trend,
		UpdatedAt: now,
	}
}
