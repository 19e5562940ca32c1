// Package market contains the fetch orchestrators: one service per data
// domain, each resolving requests through the tiered cache, the golden
// dataset, live providers, and finally a synthetic generator so the
// dashboard always has something to render.
package market

import (
	"context"
	"time"

	"pulsedeck/internal/provider"
)

// LeverageState classifies the leverage regime
type LeverageState string

const (
	StateShortsCrowded LeverageState = "shorts-crowded"
	StateLongsCrowded  LeverageState = "longs-crowded"
	StateBalanced      LeverageState = "balanced"
)

// Label returns the dashboard label for a state
func (s LeverageState) Label() string {
	switch s {
	case StateShortsCrowded:
		return "squeeze risk"
	case StateLongsCrowded:
		return "flush risk"
	default:
		return "neutral"
	}
}

// LeverageResult is the derived leverage regime payload
type LeverageResult struct {
	Symbol          string             `json:"symbol"`
	OpenInterestUSD float64            `json:"open_interest_usd"`
	OIByExchange    map[string]float64 `json:"oi_by_exchange"`
	OIMcapRatio     float64            `json:"oi_mcap_ratio"`
	OIChange7d      float64            `json:"oi_change_7d"`
	FundingRate     float64            `json:"funding_rate"`
	OverallScore    float64            `json:"overall_score"`
	State           LeverageState      `json:"state"`
	StateLabel      string             `json:"state_label"`
	Exchanges       []string           `json:"exchanges"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// ExchangeFunding is one exchange's funding reading inside a FundingResult
type ExchangeFunding struct {
	Exchange        string    `json:"exchange"`
	Rate            float64   `json:"rate"`
	NextFundingTime time.Time `json:"next_funding_time"`
}

// FundingResult is the aggregated funding rate payload
type FundingResult struct {
	Symbol        string            `json:"symbol"`
	Rates         []ExchangeFunding `json:"rates"`
	Average       float64           `json:"average"`
	AnnualizedPct float64           `json:"annualized_pct"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ETFFlowResult is the spot ETF flow payload
type ETFFlowResult struct {
	Asset     string             `json:"asset"`
	Flows     []provider.ETFFlow `json:"flows"`
	Total5d   float64            `json:"total_5d"`
	Trend     string             `json:"trend"` // inflow, outflow, mixed
	UpdatedAt time.Time          `json:"updated_at"`
}

// LiquidityResult is the treasury-yield liquidity pulse payload
type LiquidityResult struct {
	Timeframe  string                 `json:"timeframe"`
	Yield2Y    float64                `json:"yield_2y"`
	Yield10Y   float64                `json:"yield_10y"`
	Spread     float64                `json:"spread_2s10s"`
	History    []provider.SeriesPoint `json:"history"`
	PulseScore float64                `json:"pulse_score"` // 0-100
	Regime     string                 `json:"regime"`      // easing, neutral, tightening
	UpdatedAt  time.Time              `json:"updated_at"`
}

// RSIResult is the RSI payload
type RSIResult struct {
	Symbol    string                 `json:"symbol"`
	Period    int                    `json:"period"`
	Timeframe string                 `json:"timeframe"`
	Value     float64                `json:"value"`
	Signal    string                 `json:"signal"` // overbought, oversold, neutral
	Series    []provider.SeriesPoint `json:"series"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// OpenInterestProvider supplies exchange open interest readings
type OpenInterestProvider interface {
	Name() string
	OpenInterest(ctx context.Context, symbol string) (*provider.OpenInterest, error)
}

// FundingProvider supplies exchange funding rate readings
type FundingProvider interface {
	Name() string
	FundingRate(ctx context.Context, symbol string) (*provider.FundingRate, error)
}

// MarketCapProvider supplies market capitalization for the OI/MCap ratio
type MarketCapProvider interface {
	Name() string
	MarketCap(ctx context.Context, symbol string) (float64, error)
}

// ETFFlowProvider supplies daily spot ETF net flows
type ETFFlowProvider interface {
	Name() string
	Flows(ctx context.Context, asset string, days int) ([]provider.ETFFlow, error)
}

// SeriesProvider supplies a named time series (treasury yields)
type SeriesProvider interface {
	Name() string
	Series(ctx context.Context, seriesID string, window time.Duration) ([]provider.SeriesPoint, error)
}

// RSIProvider supplies RSI series
type RSIProvider interface {
	Name() string
	RSI(ctx context.Context, symbol string, period int, interval string) ([]provider.SeriesPoint, error)
}
