package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"pulsedeck/internal/cache"
	apperrors "pulsedeck/internal/errors"
	"pulsedeck/internal/logger"
)

// Perpetual funding settles every 8 hours, three times a day.
const fundingIntervalsPerDay = 3

// FundingService aggregates perpetual funding rates across exchanges.
type FundingService struct {
	cache     *cache.TieredCache
	providers []FundingProvider
	synth     *Synthesizer
	log       logger.Logger
	now       func() time.Time
}

// NewFundingService creates a funding orchestrator
func NewFundingService(c *cache.TieredCache, providers []FundingProvider, synth *Synthesizer, log logger.Logger) *FundingService {
	return &FundingService{
		cache:     c,
		providers: providers,
		synth:     synth,
		log:       log,
		now:       time.Now,
	}
}

// CacheKey returns the time-bucketed cache key a request resolves against
func (s *FundingService) CacheKey(symbol string) string {
	return fundingKey(symbol, s.now())
}

// GetFunding resolves the aggregated funding payload for a symbol
func (s *FundingService) GetFunding(ctx context.Context, symbol string) (*FundingResult, cache.Source, error) {
	var result FundingResult

	spec := cache.FallbackSpec{
		Key:      fundingKey(symbol, s.now()),
		Tier:     cache.TierRealtime,
		DataType: fundingDataType(symbol),
	}

	source, err := s.cache.GetOrFetchWithFallback(ctx, spec, &result, func(ctx context.Context) (interface{}, error) {
		return s.fetchLive(ctx, symbol)
	})
	if err != nil {
		s.log.Warn("funding fallback chain exhausted, serving synthetic data",
			"symbol", symbol, "error", err.Error())
		return s.synth.Funding(symbol), cache.SourceSynthetic, nil
	}

	return &result, source, nil
}

func (s *FundingService) fetchLive(ctx context.Context, symbol string) (*FundingResult, error) {
	var mu sync.Mutex
	var rates []ExchangeFunding
	var wg sync.WaitGroup

	for _, p := range s.providers {
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
			rates = append(rates, ExchangeFunding{
				Exchange:        rate.Exchange,
				Rate:            rate.Rate,
				NextFundingTime: rate.NextFundingTime,
			})
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	if len(rates) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeAllProvidersFailed,
			"all funding providers failed", nil).WithContext("symbol", symbol)
	}

	sort.Slice(rates, func(i, j int) bool { return rates[i].Exchange < rates[j].Exchange })

	var sum float64
	for _, r := range rates {
		sum += r.Rate
	}
	avg := sum / float64(len(rates))

	return &FundingResult{
		Symbol:        symbol,
		Rates:         rates,
		Average:       avg,
		AnnualizedPct: annualizeFunding(avg),
		UpdatedAt:     s.now(),
	}, nil
}

// annualizeFunding converts a per-interval funding fraction into an
// annualized percentage.
func annualizeFunding(rate float64) float64 {
	return rate * fundingIntervalsPerDay * 365 * 100
}
