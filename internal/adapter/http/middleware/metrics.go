package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsMiddleware records request counts and latencies.
type MetricsMiddleware struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsMiddleware creates a MetricsMiddleware. requests is labelled by
// method, path and status; duration by method and path.
func NewMetricsMiddleware(requests *prometheus.CounterVec, duration *prometheus.HistogramVec) *MetricsMiddleware {
	return &MetricsMiddleware{
		requests: requests,
		duration: duration,
	}
}

// Wrap wraps an http.Handler with metrics recording.
func (m *MetricsMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)

		m.requests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.duration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses unknown paths so scanners cannot blow up label
// cardinality.
func normalizePath(path string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "/"
	}

	switch path {
	case "/health", "/ready", "/metrics",
		"/api/v1/transfers", "/api/v1/summary", "/api/v1/ledger/consistency":
		return path
	}

	if strings.HasPrefix(path, "/api/v1/") {
		return "/api/v1/:other"
	}

	return "/:other"
}
