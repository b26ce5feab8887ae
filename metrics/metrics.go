// Package metrics provides Prometheus metrics for folio.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts handled requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "folio",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "folio",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// SanitizeTotal counts sanitizer calls by mode and outcome.
	SanitizeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "folio",
			Name:      "sanitize_total",
			Help:      "Total number of sanitize operations",
		},
		[]string{"mode", "status"},
	)

	// SanitizeDuration measures sanitizer latency.
	SanitizeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "folio",
			Name:      "sanitize_duration_seconds",
			Help:      "Duration of sanitize operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"mode"},
	)

	// SanitizeInputBytes observes input sizes.
	SanitizeInputBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "folio",
			Name:      "sanitize_input_bytes",
			Help:      "Distribution of sanitizer input sizes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"mode"},
	)

	// CacheLookups counts rendered-HTML cache lookups.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "folio",
			Name:      "render_cache_lookups_total",
			Help:      "Rendered HTML cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordSanitize records one sanitizer call.
func RecordSanitize(mode string, inputBytes int, duration float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SanitizeTotal.WithLabelValues(mode, status).Inc()
	SanitizeDuration.WithLabelValues(mode).Observe(duration)
	SanitizeInputBytes.WithLabelValues(mode).Observe(float64(inputBytes))
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

// RecordRequest records a finished HTTP request.
func RecordRequest(method, route, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
