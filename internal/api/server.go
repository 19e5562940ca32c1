// Package api exposes the dashboard's HTTP surface: the public market
// endpoints, the authenticated admin endpoints and the WebSocket snapshot
// stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pulsedeck/internal/auth"
	"pulsedeck/internal/cache"
	"pulsedeck/internal/config"
	"pulsedeck/internal/golden"
	"pulsedeck/internal/logger"
	"pulsedeck/internal/market"
	"pulsedeck/internal/monitoring"
)

// Server is the API server
type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	log        logger.Logger

	cache      *cache.TieredCache
	jwtManager *auth.JWTManager
	metrics    *monitoring.Metrics

	market    *MarketHandler
	admin     *AdminHandler
	websocket *WebSocketHandler
}

// Services carries the wired application services into the server
type Services struct {
	Cache     *cache.TieredCache
	Golden    *golden.Service
	Leverage  *market.LeverageService
	Funding   *market.FundingService
	ETF       *market.ETFFlowService
	Liquidity *market.LiquidityService
	RSI       *market.RSIService
	Metrics   *monitoring.Metrics
}

// NewServer creates the API server and registers all routes
func NewServer(cfg *config.Config, svc Services, log logger.Logger) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.SecretKey, cfg.Auth.TokenDuration)

	s := &Server{
		config:     cfg,
		router:     gin.New(),
		log:        log,
		cache:      svc.Cache,
		jwtManager: jwtManager,
		metrics:    svc.Metrics,
		market:     NewMarketHandler(svc.Leverage, svc.Funding, svc.ETF, svc.Liquidity, svc.RSI, svc.Metrics),
		admin:      NewAdminHandler(svc.Cache, svc.Golden, jwtManager, cfg.Auth.AdminKey),
		websocket:  NewWebSocketHandler(svc.Leverage, svc.Funding, svc.Liquidity, svc.Metrics, log),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(loggingMiddleware(s.log))
	s.router.Use(corsMiddleware(s.config.CORS))
	s.router.Use(rateLimitMiddleware(s.config.RateLimit))
	if s.metrics != nil {
		s.router.Use(s.metrics.MetricsMiddleware())
	}

	if s.config.Monitoring.PrometheusEnabled {
		s.router.GET(s.config.Monitoring.PrometheusPath, gin.WrapH(monitoring.PrometheusHandler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		marketGroup := v1.Group("/market")
		{
			marketGroup.GET("/leverage", s.market.GetLeverage)
			marketGroup.GET("/funding", s.market.GetFunding)
			marketGroup.GET("/etf-flows", s.market.GetETFFlows)
			marketGroup.GET("/liquidity", s.market.GetLiquidity)
			marketGroup.GET("/rsi", s.market.GetRSI)
		}

		v1.POST("/auth/token", s.admin.IssueToken)

		adminGroup := v1.Group("/admin")
		adminGroup.Use(s.jwtManager.AuthMiddleware())
		{
			adminGroup.GET("/cache/metrics", s.admin.GetCacheMetrics)
			adminGroup.POST("/cache/metrics/reset", s.admin.ResetCacheMetrics)
			adminGroup.DELETE("/cache/keys/:key", s.admin.DeleteCacheKey)

			adminGroup.GET("/golden", s.admin.GetGoldenEntries)
			adminGroup.GET("/golden/stats", s.admin.GetGoldenStats)
			adminGroup.POST("/golden/cleanup", s.admin.CleanupGolden)
			adminGroup.GET("/golden/export", s.admin.ExportGolden)
			adminGroup.POST("/golden/import", s.admin.ImportGolden)
		}

		v1.GET("/ws", s.websocket.Stream)

		v1.GET("/health", s.handleHealth)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	health := s.cache.HealthCheck(c.Request.Context())

	status := "ok"
	if health.Degraded {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"version": s.config.App.Version,
		"time":    time.Now().UTC(),
		"cache":   health,
	})
}

// Start runs the HTTP server until it is shut down
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	s.log.Info("starting API server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Router exposes the gin engine, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down API server")

	s.websocket.Close()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}
	return nil
}
