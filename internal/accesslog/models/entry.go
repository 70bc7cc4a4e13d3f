package models

import (
	"strings"
	"time"

	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
)

type AccessType string

const (
	AccessRead  AccessType = "Read"
	AccessWrite AccessType = "Write"
)

// ParseAccessType accepts "read" or "write" in any case.
func ParseAccessType(s string) (AccessType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read":
		return AccessRead, nil
	case "write":
		return AccessWrite, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "access type must be Read or Write")
	}
}

// AuditEntry records one organization touching one citizen's data. Entries
// are immutable once appended; ID and DateTime are assigned by the store.
type AuditEntry struct {
	ID               int64                 `json:"id"`
	OrganizationID   domain.OrganizationID `json:"organization_id"`
	OrganizationName string                `json:"organization_name"`
	CitizenID        domain.CitizenID      `json:"citizen_id"`
	DataType         domain.DataCategory   `json:"data_type,omitempty"`
	DateTime         time.Time             `json:"date_time"`
	Purpose          string                `json:"purpose"`
	AccessType       AccessType            `json:"access_type"`

	// Authorized is whether an active grant backed the access when it was appended.
	Authorized bool `json:"authorized"`
}

// Filter narrows a query. Zero values match everything. Text matches the
// organization name or purpose, case-insensitively.
type Filter struct {
	OrganizationID *domain.OrganizationID
	CitizenID      *domain.CitizenID
	From           time.Time
	To             time.Time
	Text           string
}

func (f Filter) Matches(e *AuditEntry) bool {
	if f.OrganizationID != nil && e.OrganizationID != *f.OrganizationID {
		return false
	}
	if f.CitizenID != nil && e.CitizenID != *f.CitizenID {
		return false
	}
	if !f.From.IsZero() && e.DateTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.DateTime.After(f.To) {
		return false
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(e.OrganizationName), needle) &&
			!strings.Contains(strings.ToLower(e.Purpose), needle) {
			return false
		}
	}
	return true
}

// Counts summarizes an organization's trail for scoring.
type Counts struct {
	Total        int
	Unauthorized int
}

// UnauthorizedRatio is 0 when there are no entries.
func (c Counts) UnauthorizedRatio() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Unauthorized) / float64(c.Total)
}
