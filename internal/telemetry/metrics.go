package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	RequestTotal       *prometheus.CounterVec
	RequestDurationMs  *prometheus.HistogramVec
	RateLimitHitTotal  prometheus.Counter
	UpstreamErrorTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_request_total",
			Help: "Total number of chat requests processed by the relay.",
		}, []string{"status", "mode"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_request_duration_ms",
			Help:    "Total request duration in milliseconds (including upstream latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"mode"}),

		RateLimitHitTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_rate_limit_hit_total",
			Help: "Total requests denied by the rate limiter.",
		}),

		UpstreamErrorTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_upstream_error_total",
			Help: "Total upstream dispatch failures by kind.",
		}, []string{"kind"}),
	}
}

// RecordRequest records a completed relay request. mode is the response
// bridge outcome: json, stream, fallback or error.
func (m *Metrics) RecordRequest(status, mode string, durationMs float64) {
	m.RequestTotal.WithLabelValues(status, mode).Inc()
	m.RequestDurationMs.WithLabelValues(mode).Observe(durationMs)
}

// RecordRateLimitHit records a denied request.
func (m *Metrics) RecordRateLimitHit() {
	m.RateLimitHitTotal.Inc()
}

// RecordUpstreamError records an upstream failure. kind is one of timeout,
// network or status.
func (m *Metrics) RecordUpstreamError(kind string) {
	m.UpstreamErrorTotal.WithLabelValues(kind).Inc()
}
