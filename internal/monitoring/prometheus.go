// Package monitoring exports Prometheus metrics for the HTTP surface, the
// cache layers and the upstream providers.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec
	apiErrorsTotal       *prometheus.CounterVec

	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal prometheus.Counter
	cacheErrorsTotal prometheus.Counter

	providerRequestsTotal *prometheus.CounterVec
	dataSourcesTotal      *prometheus.CounterVec

	goldenEntries *prometheus.GaugeVec

	activeConnections prometheus.Gauge
}

// goldenTiers is the fixed label set of the golden dataset ladder
var goldenTiers = []string{"fresh", "stale", "archived", "fallback"}

// NewMetrics creates and registers the Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
			[]string{"method", "endpoint"},
		),
		apiErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"endpoint", "error_type"},
		),
		cacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits by layer",
			},
			[]string{"layer"},
		),
		cacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
		),
		cacheErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_errors_total",
				Help: "Total number of cache store errors",
			},
		),
		providerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_requests_total",
				Help: "Total number of upstream provider requests",
			},
			[]string{"provider", "status"},
		),
		dataSourcesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "responses_by_source_total",
				Help: "API responses by resolution source",
			},
			[]string{"domain", "source"},
		),
		goldenEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "golden_dataset_entries",
				Help: "Golden dataset entries by tier",
			},
			[]string{"tier"},
		),
		activeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "websocket_connections_active",
				Help: "Number of active WebSocket connections",
			},
		),
	}

	prometheus.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.apiErrorsTotal,
		m.cacheHitsTotal,
		m.cacheMissesTotal,
		m.cacheErrorsTotal,
		m.providerRequestsTotal,
		m.dataSourcesTotal,
		m.goldenEntries,
		m.activeConnections,
	)

	return m
}

// MetricsMiddleware creates a Prometheus metrics middleware
func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		m.httpRequestsInFlight.WithLabelValues(c.Request.Method, path).Inc()
		defer m.httpRequestsInFlight.WithLabelValues(c.Request.Method, path).Dec()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)

		if c.Writer.Status() >= 400 {
			errorType := "client_error"
			if c.Writer.Status() >= 500 {
				errorType = "server_error"
			}
			m.apiErrorsTotal.WithLabelValues(path, errorType).Inc()
		}
	}
}

// PrometheusHandler returns the Prometheus metrics handler
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// CacheHit records a cache hit for a layer
func (m *Metrics) CacheHit(layer string) {
	m.cacheHitsTotal.WithLabelValues(layer).Inc()
}

// CacheMiss records a cache miss
func (m *Metrics) CacheMiss() {
	m.cacheMissesTotal.Inc()
}

// CacheError records a cache store error
func (m *Metrics) CacheError() {
	m.cacheErrorsTotal.Inc()
}

// RecordProviderRequest records an upstream provider call outcome
func (m *Metrics) RecordProviderRequest(provider, status string) {
	m.providerRequestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordGoldenTiers sets the golden dataset entry gauge for every ladder
// tier. Tiers absent from byTier are reset to zero so the gauge tracks
// deletions too.
func (m *Metrics) RecordGoldenTiers(byTier map[string]int) {
	for _, tier := range goldenTiers {
		m.goldenEntries.WithLabelValues(tier).Set(float64(byTier[tier]))
	}
}

// RecordResponseSource records which resolution layer served a response
func (m *Metrics) RecordResponseSource(domain, source string) {
	m.dataSourcesTotal.WithLabelValues(domain, source).Inc()
}

// ConnectionOpened increments the active WebSocket connection gauge
func (m *Metrics) ConnectionOpened() {
	m.activeConnections.Inc()
}

// ConnectionClosed decrements the active WebSocket connection gauge
func (m *Metrics) ConnectionClosed() {
	m.activeConnections.Dec()
}
