package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsedeck/internal/cache"
	"pulsedeck/internal/config"
	"pulsedeck/internal/golden"
	"pulsedeck/internal/logger"
	"pulsedeck/internal/market"
	"pulsedeck/internal/provider"
)

type stubOI struct {
	reading *provider.OpenInterest
	err     error
}

func (s *stubOI) Name() string { return "stub" }
func (s *stubOI) OpenInterest(ctx context.Context, symbol string) (*provider.OpenInterest, error) {
	return s.reading, s.err
}

type stubFunding struct {
	rate *provider.FundingRate
	err  error
}

func (s *stubFunding) Name() string { return "stub" }
func (s *stubFunding) FundingRate(ctx context.Context, symbol string) (*provider.FundingRate, error) {
	return s.rate, s.err
}

type stubETF struct {
	flows []provider.ETFFlow
	err   error
}

func (s *stubETF) Name() string { return "stub" }
func (s *stubETF) Flows(ctx context.Context, asset string, days int) ([]provider.ETFFlow, error) {
	return s.flows, s.err
}

type stubSeries struct {
	series map[string][]provider.SeriesPoint
	err    error
}

func (s *stubSeries) Name() string { return "stub" }
func (s *stubSeries) Series(ctx context.Context, seriesID string, window time.Duration) ([]provider.SeriesPoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.series[seriesID], nil
}

type stubRSI struct {
	series []provider.SeriesPoint
	err    error
}

func (s *stubRSI) Name() string { return "stub" }
func (s *stubRSI) RSI(ctx context.Context, symbol string, period int, interval string) ([]provider.SeriesPoint, error) {
	return s.series, s.err
}

type testProviders struct {
	oi      *stubOI
	funding *stubFunding
	etf     *stubETF
	series  *stubSeries
	rsi     *stubRSI
}

func healthyProviders() *testProviders {
	return &testProviders{
		oi: &stubOI{reading: &provider.OpenInterest{
			Exchange: "binance", Symbol: "BTC", NotionalUSD: 12e9,
		}},
		funding: &stubFunding{rate: &provider.FundingRate{
			Exchange: "binance", Rate: 0.0001,
		}},
		etf: &stubETF{flows: []provider.ETFFlow{
			{Date: "2026-08-28", NetFlowUSD: 120},
			{Date: "2026-08-29", NetFlowUSD: 80},
		}},
		series: &stubSeries{series: map[string][]provider.SeriesPoint{
			"DGS2":  {{Date: "2026-08-29", Value: 4.0}},
			"DGS10": {{Date: "2026-08-29", Value: 4.6}},
		}},
		rsi: &stubRSI{series: []provider.SeriesPoint{
			{Date: "2026-08-29", Value: 55},
		}},
	}
}

func failingProviders() *testProviders {
	down := errors.New("provider down")
	return &testProviders{
		oi:      &stubOI{err: down},
		funding: &stubFunding{err: down},
		etf:     &stubETF{err: down},
		series:  &stubSeries{err: down},
		rsi:     &stubRSI{err: down},
	}
}

func newTestServer(t *testing.T, p *testProviders) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Global()

	dir := t.TempDir()
	goldenSvc := golden.NewService(
		filepath.Join(dir, "golden.json"),
		filepath.Join(dir, "golden.backup.json"),
		golden.Windows{Fresh: 6 * time.Hour, Stale: 24 * time.Hour, Archived: 72 * time.Hour, Fallback: 168 * time.Hour},
		log,
	)

	tieredCache := cache.NewTieredCache(cache.Options{
		Golden: goldenSvc,
		Tiers: cache.TierTable{
			Realtime:   60 * time.Second,
			Frequent:   30 * time.Minute,
			Stable:     4 * time.Hour,
			Historical: 24 * time.Hour,
		},
		Log: log,
	})
	t.Cleanup(func() { tieredCache.Close() })

	synth := market.NewSynthesizer(1)

	cfg := config.Default()
	cfg.Auth.SecretKey = "test-secret"
	cfg.Auth.AdminKey = "test-admin-key"
	cfg.RateLimit.Enabled = false
	cfg.Monitoring.PrometheusEnabled = false

	services := Services{
		Cache:     tieredCache,
		Golden:    goldenSvc,
		Leverage:  market.NewLeverageService(tieredCache, []market.OpenInterestProvider{p.oi}, []market.FundingProvider{p.funding}, nil, synth, log),
		Funding:   market.NewFundingService(tieredCache, []market.FundingProvider{p.funding}, synth, log),
		ETF:       market.NewETFFlowService(tieredCache, p.etf, synth, log),
		Liquidity: market.NewLiquidityService(tieredCache, p.series, synth, log),
		RSI:       market.NewRSIService(tieredCache, p.rsi, synth, log),
	}

	server := NewServer(cfg, services, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Stop(ctx)
	})
	return server
}

func doGET(server *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	server.Router().ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestMarketEndpointsLiveData(t *testing.T) {
	server := newTestServer(t, healthyProviders())

	paths := []string{
		"/api/v1/market/leverage?symbol=BTC",
		"/api/v1/market/funding?symbol=BTC",
		"/api/v1/market/etf-flows?asset=btc",
		"/api/v1/market/liquidity?timeframe=3M",
		"/api/v1/market/rsi?symbol=BTC&period=14&timeframe=1D",
	}

	for _, path := range paths {
		w := doGET(server, path)
		require.Equal(t, http.StatusOK, w.Code, "path %s: %s", path, w.Body.String())

		resp := decodeEnvelope(t, w)
		assert.True(t, resp.Success, "path %s", path)
		require.NotNil(t, resp.Metadata, "path %s", path)
		assert.Equal(t, string(cache.SourceLive), resp.Metadata.DataSource, "path %s", path)
		assert.NotEmpty(t, resp.Metadata.CacheKey, "path %s", path)
		assert.Empty(t, resp.Warning, "path %s", path)
	}
}

func TestMarketEndpointsDegradeToSynthetic(t *testing.T) {
	server := newTestServer(t, failingProviders())

	w := doGET(server, "/api/v1/market/leverage?symbol=BTC")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Metadata)
	assert.Equal(t, string(cache.SourceSynthetic), resp.Metadata.DataSource)
	assert.NotEmpty(t, resp.Warning)
}

func TestMarketEndpointValidation(t *testing.T) {
	server := newTestServer(t, healthyProviders())

	cases := []string{
		"/api/v1/market/leverage?symbol=DOGE",
		"/api/v1/market/funding?symbol=XRP",
		"/api/v1/market/etf-flows?asset=sol",
		"/api/v1/market/liquidity?timeframe=2W",
		"/api/v1/market/rsi?symbol=BTC&period=10",
		"/api/v1/market/rsi?symbol=BTC&period=14&timeframe=4H",
	}

	for _, path := range cases {
		w := doGET(server, path)
		assert.Equal(t, http.StatusBadRequest, w.Code, "path %s", path)

		resp := decodeEnvelope(t, w)
		assert.False(t, resp.Success, "path %s", path)
		assert.NotEmpty(t, resp.Error, "path %s", path)
	}
}

func TestSecondRequestServedFromCache(t *testing.T) {
	server := newTestServer(t, healthyProviders())

	first := decodeEnvelope(t, doGET(server, "/api/v1/market/funding?symbol=BTC"))
	require.Equal(t, string(cache.SourceLive), first.Metadata.DataSource)

	second := decodeEnvelope(t, doGET(server, "/api/v1/market/funding?symbol=BTC"))
	assert.Equal(t, string(cache.SourceCache), second.Metadata.DataSource)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, healthyProviders())

	w := doGET(server, "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAdminRequiresToken(t *testing.T) {
	server := newTestServer(t, healthyProviders())

	w := doGET(server, "/api/v1/admin/cache/metrics")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminTokenFlow(t *testing.T) {
	server := newTestServer(t, healthyProviders())

	// Wrong key is rejected.
	body, _ := json.Marshal(TokenRequest{AdminKey: "wrong"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Correct key yields a token.
	body, _ = json.Marshal(TokenRequest{AdminKey: "test-admin-key"})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	require.True(t, resp.Success)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var tokenResp TokenResponse
	require.NoError(t, json.Unmarshal(data, &tokenResp))
	require.NotEmpty(t, tokenResp.AccessToken)

	// The token opens the admin surface.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/cache/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)
	server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Golden stats too.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/golden/stats", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)
	server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLiveFetchWritesGoldenDataset(t *testing.T) {
	server := newTestServer(t, healthyProviders())

	first := decodeEnvelope(t, doGET(server, "/api/v1/market/liquidity?timeframe=3M"))
	require.Equal(t, string(cache.SourceLive), first.Metadata.DataSource)

	stats := server.admin.golden.Stats()
	assert.GreaterOrEqual(t, stats.Entries, 1)
}
