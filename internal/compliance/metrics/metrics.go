package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for scoring and violations.
type Metrics struct {
	ScoreComputations  *prometheus.CounterVec
	ScoreDuration      prometheus.Histogram
	CacheLookups       *prometheus.CounterVec
	ViolationsOpened   *prometheus.CounterVec
	ViolationsAdvanced *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ScoreComputations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_score_computations_total",
			Help: "Scores computed from a fresh snapshot by kind",
		}, []string{"kind"}),
		ScoreDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "truconn_compliance_report_duration_seconds",
			Help:    "Time to assemble an uncached compliance report",
			Buckets: prometheus.DefBuckets,
		}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_compliance_cache_lookups_total",
			Help: "Compliance report cache lookups by result",
		}, []string{"result"}),
		ViolationsOpened: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_violations_opened_total",
			Help: "Violations opened by issue type and source",
		}, []string{"issue_type", "source"}),
		ViolationsAdvanced: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_violations_advanced_total",
			Help: "Violation status transitions by target status",
		}, []string{"status"}),
	}
}

func (m *Metrics) IncrementScore(kind string) {
	if m == nil {
		return
	}
	m.ScoreComputations.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveReportDuration(seconds float64) {
	if m == nil {
		return
	}
	m.ScoreDuration.Observe(seconds)
}

func (m *Metrics) IncrementCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementViolationOpened(issueType, source string) {
	if m == nil {
		return
	}
	m.ViolationsOpened.WithLabelValues(issueType, source).Inc()
}

func (m *Metrics) IncrementViolationAdvanced(status string) {
	if m == nil {
		return
	}
	m.ViolationsAdvanced.WithLabelValues(status).Inc()
}
