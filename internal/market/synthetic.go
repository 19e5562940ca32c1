package market

import (
	"math/rand"
	"sync"
	"time"

	"pulsedeck/internal/provider"
)

// Synthesizer generates plausible payloads for when every real and cached
// data source is exhausted. It is an explicit last-resort strategy, never a
// silent substitute: responses built from it are flagged as synthetic in
// metadata. The RNG is seeded so tests are deterministic.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSynthesizer creates a synthesizer with the given seed
func NewSynthesizer(seed int64) *Synthesizer {
	return &Synthesizer{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

// between returns a uniform value in [lo, hi)
func (s *Synthesizer) between(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

// Leverage generates a balanced-regime leverage payload
func (s *Synthesizer) Leverage(symbol string) *LeverageResult {
	oi := s.between(8e9, 25e9)
	funding := s.between(-0.0003, 0.0008)
	result := &LeverageResult{
		Symbol:          symbol,
		OpenInterestUSD: oi,
		OIByExchange: map[string]float64{
			"binance": oi * 0.6,
			"okx":     oi * 0.4,
		},
		OIMcapRatio:  s.between(0.01, 0.02),
		OIChange7d:   s.between(-0.05, 0.05),
		FundingRate:  funding,
		OverallScore: s.between(40, 60),
		Exchanges:    []string{"binance", "okx"},
		UpdatedAt:    s.now(),
	}
	result.State = classifyLeverage(result.FundingRate, result.OverallScore, result.OIMcapRatio, result.OIChange7d)
	result.StateLabel = result.State.Label()
	return result
}

// Funding generates a funding payload near the long-run neutral rate
func (s *Synthesizer) Funding(symbol string) *FundingResult {
	base := s.between(-0.0002, 0.0006)
	rates := []ExchangeFunding{
		{Exchange: "binance", Rate: base + s.between(-0.00005, 0.00005), NextFundingTime: s.now().Add(4 * time.Hour)},
		{Exchange: "okx", Rate: base + s.between(-0.00005, 0.00005), NextFundingTime: s.now().Add(4 * time.Hour)},
	}
	avg := (rates[0].Rate + rates[1].Rate) / 2
	return &FundingResult{
		Symbol:        symbol,
		Rates:         rates,
		Average:       avg,
		AnnualizedPct: annualizeFunding(avg),
		UpdatedAt:     s.now(),
	}
}

// ETFFlows generates a short run of daily flows
func (s *Synthesizer) ETFFlows(asset string) *ETFFlowResult {
	flows := make([]provider.ETFFlow, 0, 10)
	day := s.now().AddDate(0, 0, -10)
	for i := 0; i < 10; i++ {
		flows = append(flows, provider.ETFFlow{
			Date:       day.Format("2006-01-02"),
			NetFlowUSD: s.between(-300, 500),
		})
		day = day.AddDate(0, 0, 1)
	}
	return buildETFFlowResult(asset, flows, s.now())
}

// Liquidity generates a treasury-yield payload near recent curve shapes
func (s *Synthesizer) Liquidity(timeframe string) *LiquidityResult {
	y2 := s.between(3.5, 4.8)
	y10 := y2 + s.between(-0.6, 0.8)
	history := make([]provider.SeriesPoint, 0, 20)
	day := s.now().AddDate(0, 0, -20)
	for i := 0; i < 20; i++ {
		history = append(history, provider.SeriesPoint{
			Date:  day.Format("2006-01-02"),
			Value: y10 + s.between(-0.1, 0.1),
		})
		day = day.AddDate(0, 0, 1)
	}
	return buildLiquidityResult(timeframe, y2, y10, history, s.now())
}

// RSI generates an RSI payload in the neutral band
func (s *Synthesizer) RSI(symbol string, period int, timeframe string) *RSIResult {
	series := make([]provider.SeriesPoint, 0, 30)
	day := s.now().AddDate(0, 0, -30)
	value := s.between(40, 60)
	for i := 0; i < 30; i++ {
		value += s.between(-4, 4)
		if value < 5 {
			value = 5
		}
		if value > 95 {
			value = 95
		}
		series = append(series, provider.SeriesPoint{
			Date:  day.Format("2006-01-02"),
			Value: value,
		})
		day = day.AddDate(0, 0, 1)
	}
	return buildRSIResult(symbol, period, timeframe, series, s.now())
}
