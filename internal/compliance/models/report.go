package models

import (
	"time"

	"truconn/pkg/domain"
)

// Band is the fixed three-way classification shared by every score.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// Label is the wording presentation layers show next to a band.
func (b Band) Label() string {
	switch b {
	case BandLow:
		return "excellent"
	case BandMedium:
		return "moderate"
	default:
		return "immediate action required"
	}
}

// BandFor classifies a 0-100 score: below 30 low, below 70 medium, else high.
func BandFor(score float64) Band {
	switch {
	case score < 30:
		return BandLow
	case score < 70:
		return BandMedium
	default:
		return BandHigh
	}
}

type ExposureReport struct {
	CitizenID    domain.CitizenID `json:"citizen_id"`
	Score        float64          `json:"score"`
	Band         Band             `json:"band"`
	BandLabel    string           `json:"band_label"`
	ActiveGrants int              `json:"active_grants"`
	TotalGrants  int              `json:"total_grants"`
}

type ComplianceReport struct {
	OrganizationID    domain.OrganizationID `json:"organization_id"`
	OrganizationName  string                `json:"organization_name"`
	RiskScore         float64               `json:"risk_score"`
	Band              Band                  `json:"band"`
	BandLabel         string                `json:"band_label"`
	OpenViolations    map[Severity]int      `json:"open_violations"`
	UnauthorizedRatio float64               `json:"unauthorized_ratio"`
	AuditEntries      int                   `json:"audit_entries"`
	ExpiringConsents  int                   `json:"expiring_consents"`
	ComputedAt        time.Time             `json:"computed_at"`
}

type NationalOverview struct {
	Organizations    []*ComplianceReport `json:"organizations"`
	AverageRiskScore float64             `json:"average_risk_score"`
	Band             Band                `json:"band"`
	BandLabel        string              `json:"band_label"`
}
