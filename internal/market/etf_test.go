package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"pulsedeck/internal/cache"
	"pulsedeck/internal/logger"
	"pulsedeck/internal/provider"
)

type fakeETFProvider struct {
	flows []provider.ETFFlow
	err   error
}

func (f *fakeETFProvider) Name() string { return "fake-etf" }
func (f *fakeETFProvider) Flows(ctx context.Context, asset string, days int) ([]provider.ETFFlow, error) {
	return f.flows, f.err
}

func TestBuildETFFlowResultTrend(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name      string
		flows     []float64
		wantTrend string
		wantTotal float64
	}{
		{"all inflows", []float64{100, 200, 50, 75, 25}, "inflow", 450},
		{"all outflows", []float64{-100, -200, -50, -75, -25}, "outflow", -450},
		{"mixed", []float64{100, -200, 50, -75, 25}, "mixed", -100},
		{"flat day breaks streak", []float64{100, 0, 50, 75, 25}, "mixed", 250},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flows := make([]provider.ETFFlow, len(tc.flows))
			day := now.AddDate(0, 0, -len(tc.flows))
			for i, v := range tc.flows {
				flows[i] = provider.ETFFlow{Date: day.Format("2006-01-02"), NetFlowUSD: v}
				day = day.AddDate(0, 0, 1)
			}

			result := buildETFFlowResult("btc", flows, now)
			if result.Trend != tc.wantTrend {
				t.Errorf("Expected trend %s, got %s", tc.wantTrend, result.Trend)
			}
			if result.Total5d != tc.wantTotal {
				t.Errorf("Expected total %v, got %v", tc.wantTotal, result.Total5d)
			}
		})
	}
}

func TestBuildETFFlowResultUsesLastFiveDays(t *testing.T) {
	now := time.Now()

	// Ten days: five large old outflows, five small recent inflows. Only
	// the recent five count.
	var flows []provider.ETFFlow
	day := now.AddDate(0, 0, -10)
	for i := 0; i < 5; i++ {
		flows = append(flows, provider.ETFFlow{Date: day.Format("2006-01-02"), NetFlowUSD: -1000})
		day = day.AddDate(0, 0, 1)
	}
	for i := 0; i < 5; i++ {
		flows = append(flows, provider.ETFFlow{Date: day.Format("2006-01-02"), NetFlowUSD: 10})
		day = day.AddDate(0, 0, 1)
	}

	result := buildETFFlowResult("btc", flows, now)
	if result.Total5d != 50 {
		t.Errorf("Expected total 50 from the recent window, got %v", result.Total5d)
	}
	if result.Trend != "inflow" {
		t.Errorf("Expected inflow trend, got %s", result.Trend)
	}
}

func TestBuildETFFlowResultSortsUnorderedInput(t *testing.T) {
	now := time.Now()

	flows := []provider.ETFFlow{
		{Date: "2026-08-29", NetFlowUSD: 3},
		{Date: "2026-08-27", NetFlowUSD: 1},
		{Date: "2026-08-28", NetFlowUSD: 2},
	}

	result := buildETFFlowResult("btc", flows, now)
	if result.Flows[0].Date != "2026-08-27" || result.Flows[2].Date != "2026-08-29" {
		t.Errorf("Expected flows sorted by date, got %v", result.Flows)
	}
}

func TestETFFlowsSyntheticWhenProviderFails(t *testing.T) {
	tc := newTestCache()
	defer tc.Close()

	svc := NewETFFlowService(tc, &fakeETFProvider{err: errors.New("down")}, NewSynthesizer(3), logger.Global())

	result, source, err := svc.GetFlows(context.Background(), "btc")
	if err != nil {
		t.Fatalf("Expected synthetic fallback, got error: %v", err)
	}
	if source != cache.SourceSynthetic {
		t.Errorf("Expected source synthetic, got %s", source)
	}
	if len(result.Flows) == 0 {
		t.Error("Expected synthetic payload to include flows")
	}
}
