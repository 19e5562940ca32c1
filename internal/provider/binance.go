package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pulsedeck/internal/logger"
)

// BinanceClient reads open interest and funding rates from Binance USD-M
// futures public endpoints.
type BinanceClient struct {
	*client
}

// NewBinanceClient creates a Binance futures client
func NewBinanceClient(cfg Config, log logger.Logger) *BinanceClient {
	return &BinanceClient{client: newClient("binance", cfg, log)}
}

// Name returns the provider name
func (b *BinanceClient) Name() string { return "binance" }

// instrument maps a dashboard symbol (BTC) to the Binance perpetual symbol
func (b *BinanceClient) instrument(symbol string) string {
	return strings.ToUpper(symbol) + "USDT"
}

// OpenInterest returns the current open interest in USD notional, with the
// 7-day change derived from the daily history endpoint when available.
func (b *BinanceClient) OpenInterest(ctx context.Context, symbol string) (*OpenInterest, error) {
	inst := b.instrument(symbol)

	var oiResp struct {
		OpenInterest string `json:"openInterest"`
		Time         int64  `json:"time"`
	}
	q := url.Values{"symbol": {inst}}
	if err := b.getJSON(ctx, "/fapi/v1/openInterest", q, &oiResp); err != nil {
		return nil, err
	}
	contracts, err := strconv.ParseFloat(oiResp.OpenInterest, 64)
	if err != nil {
		return nil, fmt.Errorf("binance: bad open interest value: %w", err)
	}

	var premResp struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := b.getJSON(ctx, "/fapi/v1/premiumIndex", q, &premResp); err != nil {
		return nil, err
	}
	markPrice, err := strconv.ParseFloat(premResp.MarkPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("binance: bad mark price: %w", err)
	}

	oi := &OpenInterest{
		Exchange:    "binance",
		Symbol:      symbol,
		NotionalUSD: contracts * markPrice,
		Timestamp:   time.UnixMilli(oiResp.Time),
	}

	// History is best-effort: a failure here degrades Change7d to zero
	// rather than failing the reading.
	if change, err := b.openInterestChange7d(ctx, inst); err == nil {
		oi.Change7d = change
	} else {
		b.log.Debug("binance OI history unavailable", "symbol", inst, "error", err.Error())
	}

	return oi, nil
}

func (b *BinanceClient) openInterestChange7d(ctx context.Context, inst string) (float64, error) {
	var hist []struct {
		SumOpenInterestValue string `json:"sumOpenInterestValue"`
	}
	q := url.Values{
		"symbol": {inst},
		"period": {"1d"},
		"limit":  {"8"},
	}
	if err := b.getJSON(ctx, "/futures/data/openInterestHist", q, &hist); err != nil {
		return 0, err
	}
	if len(hist) < 2 {
		return 0, fmt.Errorf("binance: insufficient OI history")
	}

	oldest, err := strconv.ParseFloat(hist[0].SumOpenInterestValue, 64)
	if err != nil || oldest == 0 {
		return 0, fmt.Errorf("binance: bad OI history value")
	}
	latest, err := strconv.ParseFloat(hist[len(hist)-1].SumOpenInterestValue, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: bad OI history value")
	}
	return (latest - oldest) / oldest, nil
}

// FundingRate returns the current funding rate
func (b *BinanceClient) FundingRate(ctx context.Context, symbol string) (*FundingRate, error) {
	var resp struct {
		LastFundingRate string `json:"lastFundingRate"`
		NextFundingTime int64  `json:"nextFundingTime"`
	}
	q := url.Values{"symbol": {b.instrument(symbol)}}
	if err := b.getJSON(ctx, "/fapi/v1/premiumIndex", q, &resp); err != nil {
		return nil, err
	}

	fundingRate, err := strconv.ParseFloat(resp.LastFundingRate, 64)
	if err != nil {
		return nil, fmt.Errorf("binance: bad funding rate: %w", err)
	}

	return &FundingRate{
		Exchange:        "binance",
		Symbol:          symbol,
		Rate:            fundingRate,
		NextFundingTime: time.UnixMilli(resp.NextFundingTime),
	}, nil
}
