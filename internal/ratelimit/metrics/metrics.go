package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions   *prometheus.CounterVec
	StoreErrors prometheus.Counter
	Degraded    prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint class and outcome",
		}, []string{"class", "outcome"}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_ratelimit_store_errors_total",
			Help: "Errors from the primary rate limit store",
		}),
		Degraded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "truconn_ratelimit_degraded",
			Help: "1 while the limiter serves from the in-process fallback",
		}),
	}
}

func (m *Metrics) IncrementDecision(class string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.Decisions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) IncrementStoreError() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}
