package models

import (
	"strings"
	"time"

	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
)

type GrantStatus string

const (
	GrantStatusActive  GrantStatus = "active"
	GrantStatusRevoked GrantStatus = "revoked"
)

func ParseGrantStatus(s string) (GrantStatus, error) {
	switch st := GrantStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case GrantStatusActive, GrantStatusRevoked:
		return st, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidState, "unknown grant status: "+s)
	}
}

// AccessGrant is one organization's access to one data category of one citizen.
//
// Invariants:
//   - Active only while the matching Consent is allowed and covers OrganizationID
//   - At most one grant per (CitizenID, OrganizationID, DataType); it is reactivated, never duplicated
type AccessGrant struct {
	ID             domain.GrantID        `json:"id"`
	CitizenID      domain.CitizenID      `json:"citizen_id"`
	OrganizationID domain.OrganizationID `json:"organization_id"`
	DataType       domain.DataCategory   `json:"data_type"`
	Purpose        string                `json:"purpose"`
	Status         GrantStatus           `json:"status"`
	CreatedAt      time.Time             `json:"created_at"`
	LastAccessedAt *time.Time            `json:"last_accessed_at,omitempty"`
	RevokedAt      *time.Time            `json:"revoked_at,omitempty"`

	// OrganizationName is resolved from the directory on read; it is not stored.
	OrganizationName string `json:"organization_name,omitempty"`
}

func NewAccessGrant(citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory, purpose string, now time.Time) *AccessGrant {
	return &AccessGrant{
		ID:             domain.NewGrantID(),
		CitizenID:      citizenID,
		OrganizationID: orgID,
		DataType:       dataType,
		Purpose:        purpose,
		Status:         GrantStatusActive,
		CreatedAt:      now,
	}
}

func (g *AccessGrant) IsActive() bool {
	return g.Status == GrantStatusActive
}

// Revoke reports whether the status changed; revoking twice is a no-op.
func (g *AccessGrant) Revoke(now time.Time) bool {
	if !g.IsActive() {
		return false
	}
	g.Status = GrantStatusRevoked
	g.RevokedAt = &now
	return true
}

// Reactivate turns a revoked grant active again with a fresh purpose.
func (g *AccessGrant) Reactivate(purpose string) {
	g.Status = GrantStatusActive
	g.Purpose = purpose
	g.RevokedAt = nil
}

// CanModify enforces that only active grants change purpose.
func (g *AccessGrant) CanModify() error {
	if !g.IsActive() {
		return dErrors.New(dErrors.CodeInvalidState, "grant is revoked")
	}
	return nil
}

// Touch advances LastAccessedAt; it never moves backwards.
func (g *AccessGrant) Touch(at time.Time) {
	if g.LastAccessedAt == nil || at.After(*g.LastAccessedAt) {
		g.LastAccessedAt = &at
	}
}

func (g *AccessGrant) Clone() *AccessGrant {
	out := *g
	if g.LastAccessedAt != nil {
		t := *g.LastAccessedAt
		out.LastAccessedAt = &t
	}
	if g.RevokedAt != nil {
		t := *g.RevokedAt
		out.RevokedAt = &t
	}
	return &out
}

// GrantFilter narrows grant listings. Text matches organization name, data
// type, or purpose case-insensitively; Status is exact. Both must hold.
type GrantFilter struct {
	Text   string
	Status GrantStatus
}

func (f GrantFilter) Matches(g *AccessGrant) bool {
	if f.Status != "" && g.Status != f.Status {
		return false
	}
	if f.Text == "" {
		return true
	}
	needle := strings.ToLower(strings.TrimSpace(f.Text))
	return containsFold(g.OrganizationName, needle) ||
		containsFold(string(g.DataType), needle) ||
		containsFold(g.Purpose, needle)
}

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}
