package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP metrics. Module metrics live beside
// their modules.
type Metrics struct {
	HTTPLatency  *prometheus.HistogramVec
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "truconn_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
	}
}

// ObserveHTTPLatency satisfies request.LatencyObserver.
func (m *Metrics) ObserveHTTPLatency(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	code := statusClass(status)
	m.HTTPLatency.WithLabelValues(method, route, code).Observe(seconds)
	m.HTTPRequests.WithLabelValues(method, route, code).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
