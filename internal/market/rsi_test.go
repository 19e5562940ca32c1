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

type fakeRSIProvider struct {
	series []provider.SeriesPoint
	err    error
}

func (f *fakeRSIProvider) Name() string { return "fake-rsi" }
func (f *fakeRSIProvider) RSI(ctx context.Context, symbol string, period int, interval string) ([]provider.SeriesPoint, error) {
	return f.series, f.err
}

func TestValidRSIParams(t *testing.T) {
	for _, p := range []int{7, 14, 21} {
		if !ValidRSIPeriod(p) {
			t.Errorf("Expected period %d to be valid", p)
		}
	}
	for _, p := range []int{0, 10, 30, -7} {
		if ValidRSIPeriod(p) {
			t.Errorf("Expected period %d to be invalid", p)
		}
	}

	if !ValidRSITimeframe("1D") || !ValidRSITimeframe("1W") {
		t.Error("Expected 1D and 1W to be valid timeframes")
	}
	if ValidRSITimeframe("1M") || ValidRSITimeframe("") {
		t.Error("Expected 1M and empty string to be invalid timeframes")
	}
}

func TestBuildRSIResultSignals(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name       string
		latest     float64
		wantSignal string
	}{
		{"overbought", 75, "overbought"},
		{"oversold", 25, "oversold"},
		{"neutral mid", 50, "neutral"},
		{"exactly 70", 70, "neutral"},
		{"exactly 30", 30, "neutral"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			series := []provider.SeriesPoint{
				{Date: "2026-08-28", Value: 50},
				{Date: "2026-08-29", Value: tc.latest},
			}
			result := buildRSIResult("BTC", 14, "1D", series, now)
			if result.Signal != tc.wantSignal {
				t.Errorf("Expected signal %s for value %v, got %s", tc.wantSignal, tc.latest, result.Signal)
			}
			if result.Value != tc.latest {
				t.Errorf("Expected value %v, got %v", tc.latest, result.Value)
			}
		})
	}
}

func TestBuildRSIResultUsesLatestAfterSort(t *testing.T) {
	now := time.Now()

	// Unordered input: the newest date wins regardless of position.
	series := []provider.SeriesPoint{
		{Date: "2026-08-29", Value: 80},
		{Date: "2026-08-27", Value: 20},
		{Date: "2026-08-28", Value: 50},
	}
	result := buildRSIResult("BTC", 14, "1D", series, now)
	if result.Value != 80 {
		t.Errorf("Expected latest value 80, got %v", result.Value)
	}
	if result.Signal != "overbought" {
		t.Errorf("Expected overbought, got %s", result.Signal)
	}
}

func TestRSIRejectsInvalidParams(t *testing.T) {
	tc := newTestCache()
	defer tc.Close()

	svc := NewRSIService(tc, &fakeRSIProvider{}, NewSynthesizer(1), logger.Global())

	if _, _, err := svc.GetRSI(context.Background(), "BTC", 10, "1D"); err == nil {
		t.Error("Expected error for invalid period")
	}
	if _, _, err := svc.GetRSI(context.Background(), "BTC", 14, "4H"); err == nil {
		t.Error("Expected error for invalid timeframe")
	}
}

func TestRSISyntheticWhenProviderFails(t *testing.T) {
	tc := newTestCache()
	defer tc.Close()

	svc := NewRSIService(tc, &fakeRSIProvider{err: errors.New("rate limited")}, NewSynthesizer(9), logger.Global())

	result, source, err := svc.GetRSI(context.Background(), "BTC", 14, "1D")
	if err != nil {
		t.Fatalf("Expected synthetic fallback, got error: %v", err)
	}
	if source != cache.SourceSynthetic {
		t.Errorf("Expected source synthetic, got %s", source)
	}
	if result.Value < 0 || result.Value > 100 {
		t.Errorf("Expected synthetic RSI in [0, 100], got %v", result.Value)
	}
	if result.Period != 14 || result.Timeframe != "1D" {
		t.Errorf("Expected requested params echoed, got period=%d timeframe=%s", result.Period, result.Timeframe)
	}
}
