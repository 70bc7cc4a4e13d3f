package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"truconn/internal/compliance/models"
	"truconn/internal/platform/config"
)

var testWeights = WeightsFrom(config.Scoring{
	CriticalViolationWeight: 20,
	HighViolationWeight:     15,
	MediumViolationWeight:   10,
	LowViolationWeight:      5,
	UnauthorizedRatioWeight: 40,
	ExpiringConsentWeight:   2,
})

func TestExposureScore(t *testing.T) {
	tests := []struct {
		name          string
		active, total int
		want          float64
	}{
		{"no grants is exactly 100", 0, 0, 100},
		{"one of four active", 1, 4, 85},
		{"all active", 3, 3, 40},
		{"all revoked", 0, 5, 100},
		{"two of three", 2, 3, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ExposureScore(tt.active, tt.total), 0.001)
		})
	}
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, models.BandLow, models.BandFor(0))
	assert.Equal(t, models.BandLow, models.BandFor(29.99))
	assert.Equal(t, models.BandMedium, models.BandFor(30))
	assert.Equal(t, models.BandMedium, models.BandFor(69.99))
	assert.Equal(t, models.BandHigh, models.BandFor(70))
	assert.Equal(t, models.BandHigh, models.BandFor(100))

	assert.Equal(t, "excellent", models.BandLow.Label())
	assert.Equal(t, "moderate", models.BandMedium.Label())
	assert.Equal(t, "immediate action required", models.BandHigh.Label())
}

func TestRiskScore(t *testing.T) {
	t.Run("empty inputs score zero", func(t *testing.T) {
		assert.Zero(t, RiskScore(testWeights, RiskInputs{}))
	})

	t.Run("weighted sum", func(t *testing.T) {
		got := RiskScore(testWeights, RiskInputs{
			OpenViolations:    map[models.Severity]int{models.SeverityHigh: 1, models.SeverityMedium: 2},
			UnauthorizedRatio: 0.25,
			ExpiringConsents:  3,
		})
		assert.InDelta(t, 15+20+10+6, got, 0.001)
	})

	t.Run("clamped to 100", func(t *testing.T) {
		got := RiskScore(testWeights, RiskInputs{
			OpenViolations:    map[models.Severity]int{models.SeverityCritical: 10},
			UnauthorizedRatio: 1,
		})
		assert.Equal(t, 100.0, got)
	})

	t.Run("new high severity violation never lowers the score", func(t *testing.T) {
		base := RiskInputs{
			OpenViolations:    map[models.Severity]int{models.SeverityCritical: 4},
			UnauthorizedRatio: 0.5,
		}
		before := RiskScore(testWeights, base)
		base.OpenViolations[models.SeverityHigh]++
		assert.GreaterOrEqual(t, RiskScore(testWeights, base), before)
	})

	t.Run("resolving a violation never raises the score", func(t *testing.T) {
		in := RiskInputs{OpenViolations: map[models.Severity]int{models.SeverityMedium: 2, models.SeverityLow: 1}}
		before := RiskScore(testWeights, in)
		in.OpenViolations[models.SeverityMedium]--
		assert.LessOrEqual(t, RiskScore(testWeights, in), before)
	})

	t.Run("unauthorized access raises the score", func(t *testing.T) {
		assert.Greater(t, RiskScore(testWeights, RiskInputs{UnauthorizedRatio: 0.1}), 0.0)
	})
}

func TestAverage(t *testing.T) {
	assert.Zero(t, Average(nil))
	assert.InDelta(t, 20.0, Average([]float64{10, 30}), 0.001)
}
