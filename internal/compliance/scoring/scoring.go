// Package scoring holds the pure score and anomaly functions. Nothing here
// reads a store or the clock; callers pass a snapshot.
package scoring

import (
	"math"

	"truconn/internal/compliance/models"
	"truconn/internal/platform/config"
)

// ExposureScore is 100 - active/total*60, or exactly 100 with no grants.
func ExposureScore(active, total int) float64 {
	if total <= 0 {
		return 100
	}
	return clamp(100 - float64(active)/float64(total)*60)
}

// Weights scale each risk signal. All weights must be non-negative; that is
// what keeps RiskScore monotonic in its inputs.
type Weights struct {
	Severity          map[models.Severity]float64
	UnauthorizedRatio float64
	ExpiringConsent   float64
}

func WeightsFrom(cfg config.Scoring) Weights {
	return Weights{
		Severity: map[models.Severity]float64{
			models.SeverityCritical: cfg.CriticalViolationWeight,
			models.SeverityHigh:     cfg.HighViolationWeight,
			models.SeverityMedium:   cfg.MediumViolationWeight,
			models.SeverityLow:      cfg.LowViolationWeight,
		},
		UnauthorizedRatio: cfg.UnauthorizedRatioWeight,
		ExpiringConsent:   cfg.ExpiringConsentWeight,
	}
}

// RiskInputs are the signals of one organization's compliance risk.
type RiskInputs struct {
	OpenViolations    map[models.Severity]int
	UnauthorizedRatio float64
	ExpiringConsents  int
}

// RiskScore is the clamped weighted sum of the inputs, 0 to 100, lower is better.
func RiskScore(w Weights, in RiskInputs) float64 {
	var sum float64
	for sev, n := range in.OpenViolations {
		sum += w.Severity[sev] * float64(n)
	}
	sum += w.UnauthorizedRatio * in.UnauthorizedRatio
	sum += w.ExpiringConsent * float64(in.ExpiringConsents)
	return clamp(sum)
}

// Average of scores; 0 for none.
func Average(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return round(sum / float64(len(scores)))
}

func clamp(v float64) float64 {
	return round(math.Max(0, math.Min(100, v)))
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
