// Package provider contains thin REST clients for the third-party market
// data sources. Every client carries an explicit request timeout and a
// token-bucket rate limiter; a saturated limiter queues the call instead of
// firing it.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"pulsedeck/internal/logger"
)

// RequestRecorder receives the outcome of every upstream call
type RequestRecorder interface {
	RecordProviderRequest(provider, status string)
}

// Config holds one provider's endpoint and limits
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	Recorder       RequestRecorder
}

// OpenInterest is an exchange open interest reading
type OpenInterest struct {
	Exchange    string    `json:"exchange"`
	Symbol      string    `json:"symbol"`
	NotionalUSD float64   `json:"notional_usd"`
	Change7d    float64   `json:"change_7d"` // fractional; 0 when the venue does not report history
	Timestamp   time.Time `json:"timestamp"`
}

// FundingRate is an exchange funding rate reading, expressed as a fraction
// per funding interval (0.0001 = 0.01%).
type FundingRate struct {
	Exchange        string    `json:"exchange"`
	Symbol          string    `json:"symbol"`
	Rate            float64   `json:"rate"`
	NextFundingTime time.Time `json:"next_funding_time"`
}

// ETFFlow is one day's net flow for an asset's spot ETFs, in USD millions
type ETFFlow struct {
	Date       string  `json:"date"`
	NetFlowUSD float64 `json:"net_flow_usd"`
}

// SeriesPoint is one observation of a time series (treasury yield, RSI)
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// client is the shared HTTP plumbing under each provider
type client struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	recorder   RequestRecorder
	log        logger.Logger
}

func newClient(name string, cfg Config, log logger.Logger) *client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &client{
		name:       name,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		recorder:   cfg.Recorder,
		log:        log,
	}
}

func (c *client) record(status string) {
	if c.recorder != nil {
		c.recorder.RecordProviderRequest(c.name, status)
	}
}

// getJSON performs a rate-limited GET and decodes the JSON body into dest
func (c *client) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) (err error) {
	defer func() {
		if err != nil {
			c.record("error")
		} else {
			c.record("success")
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", c.name, err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", c.name, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", c.name, err)
	}
	return nil
}
