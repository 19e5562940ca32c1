package api

import (
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pulsedeck/internal/auth"
	"pulsedeck/internal/cache"
	"pulsedeck/internal/golden"
)

// AdminHandler serves the operator endpoints behind JWT auth
type AdminHandler struct {
	cache      *cache.TieredCache
	golden     *golden.Service
	jwtManager *auth.JWTManager
	adminKey   string
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(c *cache.TieredCache, g *golden.Service, jwtManager *auth.JWTManager, adminKey string) *AdminHandler {
	return &AdminHandler{
		cache:      c,
		golden:     g,
		jwtManager: jwtManager,
		adminKey:   adminKey,
	}
}

// IssueToken handles POST /api/v1/auth/token, exchanging the admin key for
// a bearer token.
func (h *AdminHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if h.adminKey == "" || subtle.ConstantTimeCompare([]byte(req.AdminKey), []byte(h.adminKey)) != 1 {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Error:   "invalid admin key",
		})
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken("admin", "admin")
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to generate token",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: TokenResponse{
			AccessToken: token,
			ExpiresAt:   expiresAt,
		},
	})
}

// GetCacheMetrics handles GET /api/v1/admin/cache/metrics
func (h *AdminHandler) GetCacheMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"metrics":   h.cache.Metrics(),
			"health":    h.cache.HealthCheck(c.Request.Context()),
			"timestamp": time.Now().UTC(),
		},
	})
}

// ResetCacheMetrics handles POST /api/v1/admin/cache/metrics/reset
func (h *AdminHandler) ResetCacheMetrics(c *gin.Context) {
	h.cache.ResetMetrics()
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"message": "cache metrics reset"},
	})
}

// DeleteCacheKey handles DELETE /api/v1/admin/cache/keys/:key
func (h *AdminHandler) DeleteCacheKey(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		badRequest(c, "cache key is required")
		return
	}

	if err := h.cache.Delete(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"deleted": key},
	})
}

// GetGoldenEntries handles GET /api/v1/admin/golden
func (h *AdminHandler) GetGoldenEntries(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.golden.GetAll(),
	})
}

// GetGoldenStats handles GET /api/v1/admin/golden/stats
func (h *AdminHandler) GetGoldenStats(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    h.golden.Stats(),
	})
}

// CleanupGolden handles POST /api/v1/admin/golden/cleanup
func (h *AdminHandler) CleanupGolden(c *gin.Context) {
	removed, err := h.golden.Cleanup()
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"removed": removed},
	})
}

// ExportGolden handles GET /api/v1/admin/golden/export
func (h *AdminHandler) ExportGolden(c *gin.Context) {
	payload, err := h.golden.Export()
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

// ImportGolden handles POST /api/v1/admin/golden/import
func (h *AdminHandler) ImportGolden(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "failed to read request body")
		return
	}

	imported, err := h.golden.Import(payload)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{"imported": imported},
	})
}
