package market

import (
	"context"
	"sync"
	"time"

	"pulsedeck/internal/cache"
	apperrors "pulsedeck/internal/errors"
	"pulsedeck/internal/logger"
	"pulsedeck/internal/provider"
)

// Leverage regime thresholds. Funding rates are fractions per funding
// interval (-0.01 = -1%).
const (
	shortCrowdFunding  = -0.01
	shortCrowdMaxScore = 60.0
	longCrowdFunding   = 0.02
	longCrowdOIMcap    = 0.025
	longCrowdOIChange  = 0.10
)

// LeverageService derives the leverage regime from exchange open interest
// and funding rates.
type LeverageService struct {
	cache     *cache.TieredCache
	oi        []OpenInterestProvider
	funding   []FundingProvider
	marketCap MarketCapProvider
	synth     *Synthesizer
	log       logger.Logger
	now       func() time.Time
}

// NewLeverageService creates a leverage orchestrator
func NewLeverageService(c *cache.TieredCache, oi []OpenInterestProvider, funding []FundingProvider, marketCap MarketCapProvider, synth *Synthesizer, log logger.Logger) *LeverageService {
	return &LeverageService{
		cache:     c,
		oi:        oi,
		funding:   funding,
		marketCap: marketCap,
		synth:     synth,
		log:       log,
		now:       time.Now,
	}
}

// CacheKey returns the time-bucketed cache key a request resolves against
func (s *LeverageService) CacheKey(symbol string) string {
	return leverageKey(symbol, s.now())
}

// GetLeverage resolves the leverage state for a symbol through the full
// fallback chain. It never returns an error for data availability: total
// failure produces a synthetic payload flagged by the returned source.
func (s *LeverageService) GetLeverage(ctx context.Context, symbol string) (*LeverageResult, cache.Source, error) {
	var result LeverageResult

	spec := cache.FallbackSpec{
		Key:      leverageKey(symbol, s.now()),
		Tier:     cache.TierFrequent,
		DataType: leverageDataType(symbol),
	}

	source, err := s.cache.GetOrFetchWithFallback(ctx, spec, &result, func(ctx context.Context) (interface{}, error) {
		return s.fetchLive(ctx, symbol)
	})
	if err != nil {
		s.log.Warn("leverage fallback chain exhausted, serving synthetic data",
			"symbol", symbol, "error", err.Error())
		return s.synth.Leverage(symbol), cache.SourceSynthetic, nil
	}

	return &result, source, nil
}

// fetchLive performs the best-effort provider join and derivation
func (s *LeverageService) fetchLive(ctx context.Context, symbol string) (*LeverageResult, error) {
	readings := s.collectOpenInterest(ctx, symbol)
	if len(readings) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeAllProvidersFailed,
			"all open interest providers failed", nil).WithContext("symbol", symbol)
	}

	fundingRates := s.collectFunding(ctx, symbol)

	result := &LeverageResult{
		Symbol:       symbol,
		OIByExchange: make(map[string]float64, len(readings)),
		UpdatedAt:    s.now(),
	}

	var change7d float64
	for _, r := range readings {
		result.OpenInterestUSD += r.NotionalUSD
		result.OIByExchange[r.Exchange] = r.NotionalUSD
		result.Exchanges = append(result.Exchanges, r.Exchange)
		if r.Change7d != 0 {
			change7d = r.Change7d
		}
	}
	result.OIChange7d = change7d

	if len(fundingRates) > 0 {
		var sum float64
		for _, f := range fundingRates {
			sum += f.Rate
		}
		result.FundingRate = sum / float64(len(fundingRates))
	}

	// Market cap is best-effort too: without it the ratio is zero and only
	// the funding/momentum legs of the classification apply.
	if s.marketCap != nil {
		if mcap, err := s.marketCap.MarketCap(ctx, symbol); err == nil && mcap > 0 {
			result.OIMcapRatio = result.OpenInterestUSD / mcap
		} else if err != nil {
			s.log.Debug("market cap unavailable", "symbol", symbol, "error", err.Error())
		}
	}

	result.OverallScore = leverageScore(result.FundingRate, result.OIMcapRatio, result.OIChange7d)
	result.State = classifyLeverage(result.FundingRate, result.OverallScore, result.OIMcapRatio, result.OIChange7d)
	result.StateLabel = result.State.Label()

	return result, nil
}

// collectOpenInterest queries all OI providers concurrently and keeps
// whatever succeeded. One provider's failure never blocks another.
func (s *LeverageService) collectOpenInterest(ctx context.Context, symbol string) []*provider.OpenInterest {
	var mu sync.Mutex
	var readings []*provider.OpenInterest
	var wg sync.WaitGroup

	for _, p := range s.oi {
		wg.Add(1)
		go func(p OpenInterestProvider) {
			defer wg.Done()
			reading, err := p.OpenInterest(ctx, symbol)
			if err != nil {
				s.log.Warn("open interest provider failed",
					"provider", p.Name(), "symbol", symbol, "error", err.Error())
				return
			}
			mu.Lock()
			readings = append(readings, reading)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return readings
}

func (s *LeverageService) collectFunding(ctx context.Context, symbol string) []*provider.FundingRate {
	var mu sync.Mutex
	var rates []*provider.FundingRate
	var wg sync.WaitGroup

	for _, p := range s.funding {
		wg.Add(1)
		go func(p FundingProvider) {
			defer wg.Done()
			rate, err := p.FundingRate(ctx, symbol)
			if err != nil {
				s.log.Warn("funding provider failed",
					"provider", p.Name(), "symbol", symbol, "error", err.Error())
				return
			}
			mu.Lock()
			rates = append(rates, rate)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return rates
}

// leverageScore folds funding, OI/MCap and 7d OI momentum into a 0-100
// composite. Weights are policy; the output range and monotonicity are the
// contract.
func leverageScore(funding, oiMcap, change7d float64) float64 {
	fundingLeg := clamp01((funding + 0.02) / 0.06)
	oiLeg := clamp01(oiMcap / 0.05)
	momentumLeg := clamp01((change7d + 0.20) / 0.40)

	score := 100 * (0.40*fundingLeg + 0.35*oiLeg + 0.25*momentumLeg)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// classifyLeverage applies the regime decision table:
//
//	funding < -1% and score < 60                      -> shorts-crowded
//	funding > 2% and (OI/MCap >= 2.5% or 7d OI >= 10%) -> longs-crowded
//	otherwise                                          -> balanced
func classifyLeverage(funding, score, oiMcap, change7d float64) LeverageState {
	if funding < shortCrowdFunding && score < shortCrowdMaxScore {
		return StateShortsCrowded
	}
	if funding > longCrowdFunding && (oiMcap >= longCrowdOIMcap || change7d >= longCrowdOIChange) {
		return StateLongsCrowded
	}
	return StateBalanced
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
