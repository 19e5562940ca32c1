package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pulsedeck/internal/cache"
	apperrors "pulsedeck/internal/errors"
	"pulsedeck/internal/market"
	"pulsedeck/internal/monitoring"
)

// supportedSymbols are the perpetual markets the dashboard tracks
var supportedSymbols = map[string]bool{"BTC": true, "ETH": true, "SOL": true}

// supportedETFAssets are the spot ETF complexes with published flows
var supportedETFAssets = map[string]bool{"btc": true, "eth": true}

// MarketHandler serves the public market data endpoints
type MarketHandler struct {
	leverage  *market.LeverageService
	funding   *market.FundingService
	etf       *market.ETFFlowService
	liquidity *market.LiquidityService
	rsi       *market.RSIService
	metrics   *monitoring.Metrics
}

// NewMarketHandler creates a market handler
func NewMarketHandler(leverage *market.LeverageService, funding *market.FundingService, etf *market.ETFFlowService, liquidity *market.LiquidityService, rsi *market.RSIService, metrics *monitoring.Metrics) *MarketHandler {
	return &MarketHandler{
		leverage:  leverage,
		funding:   funding,
		etf:       etf,
		liquidity: liquidity,
		rsi:       rsi,
		metrics:   metrics,
	}
}

func (h *MarketHandler) respond(c *gin.Context, domain, cacheKey string, data interface{}, source cache.Source) {
	if h.metrics != nil {
		h.metrics.RecordResponseSource(domain, string(source))
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Metadata: &Metadata{
			DataSource:  string(source),
			CacheKey:    cacheKey,
			GeneratedAt: time.Now().UTC(),
		},
		Warning: warningFor(source),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg,
	})
}

// respondError maps service errors to HTTP statuses. Client-input errors
// become a 400; everything else a 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if appErr := apperrors.GetAppError(err); appErr != nil {
		status = appErr.HTTPStatus()
	}
	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
	})
}

// GetLeverage handles GET /api/v1/market/leverage
func (h *MarketHandler) GetLeverage(c *gin.Context) {
	symbol := strings.ToUpper(c.DefaultQuery("symbol", "BTC"))
	if !supportedSymbols[symbol] {
		badRequest(c, "unsupported symbol: "+symbol)
		return
	}

	result, source, err := h.leverage.GetLeverage(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, "leverage", h.leverage.CacheKey(symbol), result, source)
}

// GetFunding handles GET /api/v1/market/funding
func (h *MarketHandler) GetFunding(c *gin.Context) {
	symbol := strings.ToUpper(c.DefaultQuery("symbol", "BTC"))
	if !supportedSymbols[symbol] {
		badRequest(c, "unsupported symbol: "+symbol)
		return
	}

	result, source, err := h.funding.GetFunding(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, "funding", h.funding.CacheKey(symbol), result, source)
}

// GetETFFlows handles GET /api/v1/market/etf-flows
func (h *MarketHandler) GetETFFlows(c *gin.Context) {
	asset := strings.ToLower(c.DefaultQuery("asset", "btc"))
	if !supportedETFAssets[asset] {
		badRequest(c, "unsupported asset: "+asset)
		return
	}

	result, source, err := h.etf.GetFlows(c.Request.Context(), asset)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, "etf_flows", h.etf.CacheKey(asset), result, source)
}

// GetLiquidity handles GET /api/v1/market/liquidity
func (h *MarketHandler) GetLiquidity(c *gin.Context) {
	timeframe := strings.ToUpper(c.DefaultQuery("timeframe", "3M"))
	if !market.ValidLiquidityTimeframe(timeframe) {
		badRequest(c, "invalid timeframe: "+timeframe+" (want 1M, 3M, 6M or 1Y)")
		return
	}

	result, source, err := h.liquidity.GetLiquidity(c.Request.Context(), timeframe)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, "liquidity", h.liquidity.CacheKey(timeframe), result, source)
}

// GetRSI handles GET /api/v1/market/rsi
func (h *MarketHandler) GetRSI(c *gin.Context) {
	symbol := strings.ToUpper(c.DefaultQuery("symbol", "BTC"))
	if !supportedSymbols[symbol] {
		badRequest(c, "unsupported symbol: "+symbol)
		return
	}

	period, err := strconv.Atoi(c.DefaultQuery("period", "14"))
	if err != nil || !market.ValidRSIPeriod(period) {
		badRequest(c, "invalid period (want 7, 14 or 21)")
		return
	}

	timeframe := strings.ToUpper(c.DefaultQuery("timeframe", "1D"))
	if !market.ValidRSITimeframe(timeframe) {
		badRequest(c, "invalid timeframe: "+timeframe+" (want 1D or 1W)")
		return
	}

	result, source, err := h.rsi.GetRSI(c.Request.Context(), symbol, period, timeframe)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, "rsi", h.rsi.CacheKey(symbol, period, timeframe), result, source)
}
