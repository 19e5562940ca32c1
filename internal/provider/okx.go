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

// OKXClient reads open interest and funding rates from OKX public endpoints.
type OKXClient struct {
	*client
}

// NewOKXClient creates an OKX client
func NewOKXClient(cfg Config, log logger.Logger) *OKXClient {
	return &OKXClient{client: newClient("okx", cfg, log)}
}

// Name returns the provider name
func (o *OKXClient) Name() string { return "okx" }

func (o *OKXClient) instrument(symbol string) string {
	return strings.ToUpper(symbol) + "-USDT-SWAP"
}

// okx wraps every payload in {code, msg, data}
type okxEnvelope[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

// OpenInterest returns the current open interest in USD notional. OKX does
// not serve free OI history, so Change7d is always zero here.
func (o *OKXClient) OpenInterest(ctx context.Context, symbol string) (*OpenInterest, error) {
	var resp okxEnvelope[struct {
		OIUSD string `json:"oiUsd"`
		TS    string `json:"ts"`
	}]
	q := url.Values{"instId": {o.instrument(symbol)}}
	if err := o.getJSON(ctx, "/api/v5/public/open-interest", q, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" || len(resp.Data) == 0 {
		return nil, fmt.Errorf("okx: api error code=%s msg=%s", resp.Code, resp.Msg)
	}

	notional, err := strconv.ParseFloat(resp.Data[0].OIUSD, 64)
	if err != nil {
		return nil, fmt.Errorf("okx: bad open interest value: %w", err)
	}

	ts := time.Now()
	if ms, err := strconv.ParseInt(resp.Data[0].TS, 10, 64); err == nil {
		ts = time.UnixMilli(ms)
	}

	return &OpenInterest{
		Exchange:    "okx",
		Symbol:      symbol,
		NotionalUSD: notional,
		Timestamp:   ts,
	}, nil
}

// FundingRate returns the current funding rate
func (o *OKXClient) FundingRate(ctx context.Context, symbol string) (*FundingRate, error) {
	var resp okxEnvelope[struct {
		FundingRate     string `json:"fundingRate"`
		NextFundingTime string `json:"nextFundingTime"`
	}]
	q := url.Values{"instId": {o.instrument(symbol)}}
	if err := o.getJSON(ctx, "/api/v5/public/funding-rate", q, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" || len(resp.Data) == 0 {
		return nil, fmt.Errorf("okx: api error code=%s msg=%s", resp.Code, resp.Msg)
	}

	fundingRate, err := strconv.ParseFloat(resp.Data[0].FundingRate, 64)
	if err != nil {
		return nil, fmt.Errorf("okx: bad funding rate: %w", err)
	}

	next := time.Time{}
	if ms, err := strconv.ParseInt(resp.Data[0].NextFundingTime, 10, 64); err == nil {
		next = time.UnixMilli(ms)
	}

	return &FundingRate{
		Exchange:        "okx",
		Symbol:          symbol,
		Rate:            fundingRate,
		NextFundingTime: next,
	}, nil
}
