package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the consent module.
type Metrics struct {
	ConsentUpdates     *prometheus.CounterVec
	CascadeRevocations prometheus.Counter
	GrantsCreated      *prometheus.CounterVec
	GrantsRevoked      *prometheus.CounterVec
	RequestTransitions *prometheus.CounterVec
	TxConflicts        prometheus.Counter
	OperationLatency   *prometheus.HistogramVec
}

// New creates a new Metrics instance with all consent module metrics registered.
func New() *Metrics {
	return &Metrics{
		ConsentUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_consent_updates_total",
			Help: "Consent updates by category and resulting decision",
		}, []string{"category", "allowed"}),
		CascadeRevocations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_consent_cascade_revocations_total",
			Help: "Grants revoked as a side effect of a consent update",
		}),
		GrantsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_grants_created_total",
			Help: "Access grants created or reactivated",
		}, []string{"mode"}), // mode: "new", "reactivated"
		GrantsRevoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_grants_revoked_total",
			Help: "Access grants revoked by reason",
		}, []string{"reason"}), // reason: "citizen", "organization", "cascade"
		RequestTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_consent_request_transitions_total",
			Help: "Consent request transitions by resulting status",
		}, []string{"status"}),
		TxConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_consent_tx_conflicts_total",
			Help: "Citizen-scoped transactions rejected because the scope was busy",
		}),
		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "truconn_consent_operation_duration_seconds",
			Help:    "Duration of consent service mutations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementConsentUpdate(category string, allowed bool) {
	if m == nil {
		return
	}
	label := "false"
	if allowed {
		label = "true"
	}
	m.ConsentUpdates.WithLabelValues(category, label).Inc()
}

func (m *Metrics) AddCascadeRevocations(n int) {
	if m != nil && n > 0 {
		m.CascadeRevocations.Add(float64(n))
	}
}

func (m *Metrics) IncrementGrantCreated(reactivated bool) {
	if m == nil {
		return
	}
	mode := "new"
	if reactivated {
		mode = "reactivated"
	}
	m.GrantsCreated.WithLabelValues(mode).Inc()
}

func (m *Metrics) IncrementGrantRevoked(reason string) {
	if m != nil {
		m.GrantsRevoked.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementRequestTransition(status string) {
	if m != nil {
		m.RequestTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementTxConflict() {
	if m != nil {
		m.TxConflicts.Inc()
	}
}

func (m *Metrics) ObserveOperation(op string, start time.Time) {
	if m != nil {
		m.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
