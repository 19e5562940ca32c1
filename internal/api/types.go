package api

import (
	"time"

	"pulsedeck/internal/cache"
)

// Response is the uniform API envelope. Warning is set whenever the data
// did not come from a live or cached source, so clients can surface
// degraded freshness without parsing metadata.
type Response struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Metadata *Metadata   `json:"metadata,omitempty"`
	Warning  string      `json:"warning,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Metadata describes how a response was produced
type Metadata struct {
	DataSource  string    `json:"dataSource"`
	CacheKey    string    `json:"cacheKey,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// warningFor maps degraded sources to a client-facing warning
func warningFor(source cache.Source) string {
	switch source {
	case cache.SourceGoldenStale:
		return "serving archived data; live sources are unavailable"
	case cache.SourceSynthetic:
		return "serving synthetic data; all data sources are unavailable"
	default:
		return ""
	}
}

// TokenRequest is the admin token exchange request
type TokenRequest struct {
	AdminKey string `json:"admin_key" binding:"required"`
}

// TokenResponse carries an issued bearer token
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
