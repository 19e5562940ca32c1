package provider

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"pulsedeck/internal/logger"
)

// AlphaVantageClient reads RSI series from the Alpha Vantage technical
// indicator API. The free tier is heavily rate limited, which is why this
// client's limiter defaults are far below the exchange clients'.
type AlphaVantageClient struct {
	*client
}

// NewAlphaVantageClient creates an Alpha Vantage client
func NewAlphaVantageClient(cfg Config, log logger.Logger) *AlphaVantageClient {
	return &AlphaVantageClient{client: newClient("alphavantage", cfg, log)}
}

// Name returns the provider name
func (a *AlphaVantageClient) Name() string { return "alphavantage" }

// RSI returns the RSI series for a symbol, oldest first
func (a *AlphaVantageClient) RSI(ctx context.Context, symbol string, period int, interval string) ([]SeriesPoint, error) {
	var resp struct {
		Series map[string]struct {
			RSI string `json:"RSI"`
		} `json:"Technical Analysis: RSI"`
		Note         string `json:"Note"`
		ErrorMessage string `json:"Error Message"`
	}

	q := url.Values{
		"function":    {"RSI"},
		"symbol":      {strings.ToUpper(symbol) + "USD"},
		"interval":    {interval},
		"time_period": {strconv.Itoa(period)},
		"series_type": {"close"},
		"apikey":      {a.apiKey},
	}
	if err := a.getJSON(ctx, "/query", q, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorMessage != "" {
		return nil, fmt.Errorf("alphavantage: %s", resp.ErrorMessage)
	}
	if resp.Note != "" {
		return nil, fmt.Errorf("alphavantage: rate limited: %s", resp.Note)
	}
	if len(resp.Series) == 0 {
		return nil, fmt.Errorf("alphavantage: empty RSI series for %s", symbol)
	}

	points := make([]SeriesPoint, 0, len(resp.Series))
	for date, entry := range resp.Series {
		value, err := strconv.ParseFloat(entry.RSI, 64)
		if err != nil {
			continue
		}
		points = append(points, SeriesPoint{Date: date, Value: value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	return points, nil
}
