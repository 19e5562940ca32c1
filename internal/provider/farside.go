package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"pulsedeck/internal/logger"
)

// FarsideClient reads spot ETF daily net flows from the Farside mirror API.
type FarsideClient struct {
	*client
}

// NewFarsideClient creates a Farside ETF flow client
func NewFarsideClient(cfg Config, log logger.Logger) *FarsideClient {
	return &FarsideClient{client: newClient("farside", cfg, log)}
}

// Name returns the provider name
func (f *FarsideClient) Name() string { return "farside" }

// Flows returns the most recent daily net flows for an asset's spot ETFs,
// oldest first, in USD millions.
func (f *FarsideClient) Flows(ctx context.Context, asset string, days int) ([]ETFFlow, error) {
	var resp struct {
		Flows []struct {
			Date  string  `json:"date"`
			Total float64 `json:"total"`
		} `json:"flows"`
	}

	q := url.Values{
		"asset": {strings.ToLower(asset)},
		"days":  {fmt.Sprintf("%d", days)},
	}
	if err := f.getJSON(ctx, "/api/etf/flows", q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Flows) == 0 {
		return nil, fmt.Errorf("farside: no flow data for %s", asset)
	}

	flows := make([]ETFFlow, 0, len(resp.Flows))
	for _, row := range resp.Flows {
		flows = append(flows, ETFFlow{Date: row.Date, NetFlowUSD: row.Total})
	}
	return flows, nil
}
