package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"pulsedeck/internal/logger"
)

// FREDClient reads treasury yield series from the St. Louis Fed FRED API.
type FREDClient struct {
	*client
}

// NewFREDClient creates a FRED client. An API key is required by FRED.
func NewFREDClient(cfg Config, log logger.Logger) *FREDClient {
	return &FREDClient{client: newClient("fred", cfg, log)}
}

// Name returns the provider name
func (f *FREDClient) Name() string { return "fred" }

// Series returns observations for a FRED series id (e.g. DGS2, DGS10)
// within the window, oldest first. Missing observations ("." values) are
// skipped.
func (f *FREDClient) Series(ctx context.Context, seriesID string, window time.Duration) ([]SeriesPoint, error) {
	var resp struct {
		Observations []struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"observations"`
	}

	start := time.Now().Add(-window).Format("2006-01-02")
	q := url.Values{
		"series_id":         {seriesID},
		"api_key":           {f.apiKey},
		"file_type":         {"json"},
		"observation_start": {start},
		"sort_order":        {"asc"},
	}
	if err := f.getJSON(ctx, "/fred/series/observations", q, &resp); err != nil {
		return nil, err
	}

	points := make([]SeriesPoint, 0, len(resp.Observations))
	for _, obs := range resp.Observations {
		value, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue // "." marks market holidays
		}
		points = append(points, SeriesPoint{Date: obs.Date, Value: value})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("fred: no observations for %s", seriesID)
	}
	return points, nil
}
