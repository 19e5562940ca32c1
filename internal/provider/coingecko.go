package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"pulsedeck/internal/logger"
)

// CoinGeckoClient reads market capitalization from the CoinGecko public API.
// Used only to derive the OI/MCap ratio in the leverage orchestrator.
type CoinGeckoClient struct {
	*client
}

// NewCoinGeckoClient creates a CoinGecko client
func NewCoinGeckoClient(cfg Config, log logger.Logger) *CoinGeckoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.coingecko.com"
	}
	return &CoinGeckoClient{client: newClient("coingecko", cfg, log)}
}

// Name returns the provider name
func (c *CoinGeckoClient) Name() string { return "coingecko" }

// coinIDs maps dashboard symbols to CoinGecko coin ids
var coinIDs = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
	"SOL": "solana",
}

// MarketCap returns the current market cap in USD for a symbol
func (c *CoinGeckoClient) MarketCap(ctx context.Context, symbol string) (float64, error) {
	id, ok := coinIDs[strings.ToUpper(symbol)]
	if !ok {
		return 0, fmt.Errorf("coingecko: unknown symbol %s", symbol)
	}

	var resp map[string]struct {
		USDMarketCap float64 `json:"usd_market_cap"`
	}
	q := url.Values{
		"ids":                {id},
		"vs_currencies":      {"usd"},
		"include_market_cap": {"true"},
	}
	if err := c.getJSON(ctx, "/api/v3/simple/price", q, &resp); err != nil {
		return 0, err
	}

	entry, ok := resp[id]
	if !ok || entry.USDMarketCap <= 0 {
		return 0, fmt.Errorf("coingecko: no market cap for %s", symbol)
	}
	return entry.USDMarketCap, nil
}
