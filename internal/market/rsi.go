package market

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"pulsedeck/internal/cache"
	apperrors "pulsedeck/internal/errors"
	"pulsedeck/internal/logger"
	"pulsedeck/internal/provider"
)

// RSI signal thresholds
const (
	rsiOverbought = 70.0
	rsiOversold   = 30.0
)

// rsiIntervals maps API timeframes to provider intervals
var rsiIntervals = map[string]string{
	"1D": "daily",
	"1W": "weekly",
}

// validRSIPeriods are the accepted lookback periods
var validRSIPeriods = map[int]bool{7: true, 14: true, 21: true}

// ValidRSIPeriod reports whether period is accepted
func ValidRSIPeriod(period int) bool {
	return validRSIPeriods[period]
}

// ValidRSITimeframe reports whether tf is accepted
func ValidRSITimeframe(tf string) bool {
	_, ok := rsiIntervals[tf]
	return ok
}

// RSIService serves relative strength index readings.
type RSIService struct {
	cache    *cache.TieredCache
	provider RSIProvider
	synth    *Synthesizer
	log      logger.Logger
	now      func() time.Time
}

// NewRSIService creates an RSI orchestrator
func NewRSIService(c *cache.TieredCache, p RSIProvider, synth *Synthesizer, log logger.Logger) *RSIService {
	return &RSIService{
		cache:    c,
		provider: p,
		synth:    synth,
		log:      log,
		now:      time.Now,
	}
}

// CacheKey returns the time-bucketed cache key a request resolves against
func (s *RSIService) CacheKey(symbol string, period int, timeframe string) string {
	return rsiKey(symbol, period, timeframe, s.now())
}

// GetRSI resolves the RSI payload for a symbol, period and timeframe
func (s *RSIService) GetRSI(ctx context.Context, symbol string, period int, timeframe string) (*RSIResult, cache.Source, error) {
	if !ValidRSIPeriod(period) {
		return nil, "", apperrors.NewWithDetails(apperrors.ErrCodeInvalidInput,
			"invalid period", strconv.Itoa(period), nil)
	}
	if !ValidRSITimeframe(timeframe) {
		return nil, "", apperrors.NewWithDetails(apperrors.ErrCodeInvalidInput,
			"invalid timeframe", timeframe, nil)
	}

	var result RSIResult

	spec := cache.FallbackSpec{
		Key:      rsiKey(symbol, period, timeframe, s.now()),
		Tier:     cache.TierFrequent,
		DataType: rsiDataType(symbol, period, timeframe),
	}

	source, err := s.cache.GetOrFetchWithFallback(ctx, spec, &result, func(ctx context.Context) (interface{}, error) {
		series, err := s.provider.RSI(ctx, symbol, period, rsiIntervals[timeframe])
		if err != nil {
			return nil, err
		}
		if len(series) == 0 {
			return nil, fmt.Errorf("rsi: provider returned no data for %s", symbol)
		}
		return buildRSIResult(symbol, period, timeframe, series, s.now()), nil
	})
	if err != nil {
		s.log.Warn("rsi fallback chain exhausted, serving synthetic data",
			"symbol", symbol, "error", err.Error())
		return s.synth.RSI(symbol, period, timeframe), cache.SourceSynthetic, nil
	}

	return &result, source, nil
}

// buildRSIResult sorts the series, takes the latest value and labels it
func buildRSIResult(symbol string, period int, timeframe string, series []provider.SeriesPoint, now time.Time) *RSIResult {
	sorted := make([]provider.SeriesPoint, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	value := sorted[len(sorted)-1].Value

	signal := "neutral"
	switch {
	case value > rsiOverbought:
		signal = "overbought"
	case value < rsiOversold:
		signal = "oversold"
	}

	return &RSIResult{
		Symbol:    symbol,
		Period:    period,
		Timeframe: timeframe,
		Value:     value,
		Signal:    signal,
		Series:    sorted,
		UpdatedAt: now,
	}
}
