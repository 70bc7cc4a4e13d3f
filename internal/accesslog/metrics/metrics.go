package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the access log.
type Metrics struct {
	Appends        *prometheus.CounterVec
	PublishDropped prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Appends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_audit_appends_total",
			Help: "Audit entries appended by access type and whether a live grant backed them",
		}, []string{"access_type", "authorized"}),
		PublishDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_audit_publish_dropped_total",
			Help: "Audit entries that could not be handed to the event stream",
		}),
	}
}

func (m *Metrics) IncrementAppend(accessType string, authorized bool) {
	if m == nil {
		return
	}
	label := "false"
	if authorized {
		label = "true"
	}
	m.Appends.WithLabelValues(accessType, label).Inc()
}

func (m *Metrics) IncrementPublishDropped() {
	if m == nil {
		return
	}
	m.PublishDropped.Inc()
}
