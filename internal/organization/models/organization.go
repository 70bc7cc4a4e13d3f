package models

import (
	"strings"
	"time"

	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
)

// Status is an organization's standing in the directory.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRevoked  Status = "revoked"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusVerified, StatusRevoked:
		return st, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidState, "unknown organization status: "+s)
	}
}

// CanTransitionTo allows any move to a different status except back to pending.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return false
	}
	return next != StatusPending
}

// Organization is a data consumer listed in the national directory.
//
// Invariants:
//   - Name is non-empty, at most 128 characters, unique ignoring case
//   - A revoked organization can neither request nor receive new grants
type Organization struct {
	ID           domain.OrganizationID `json:"id"`
	Name         string                `json:"name"`
	Sector       string                `json:"sector"`
	Status       Status                `json:"status"`
	RegisteredAt time.Time             `json:"registered_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

func NewOrganization(id domain.OrganizationID, name, sector string, status Status, now time.Time) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name must be 128 characters or less")
	}
	if status == "" {
		status = StatusPending
	}
	return &Organization{
		ID:           id,
		Name:         name,
		Sector:       strings.TrimSpace(sector),
		Status:       status,
		RegisteredAt: now,
		UpdatedAt:    now,
	}, nil
}

// CanReceiveGrants reports whether new requests or grants may reference this organization.
func (o *Organization) CanReceiveGrants() bool {
	return o.Status != StatusRevoked
}

// NameKey is the case-folded name used for uniqueness.
func (o *Organization) NameKey() string {
	return NameKey(o.Name)
}

func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CanChangeStatus validates a status transition.
func (o *Organization) CanChangeStatus(next Status) error {
	if !o.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidState, "organization cannot move from "+string(o.Status)+" to "+string(next))
	}
	return nil
}

func (o *Organization) ApplyStatus(next Status, now time.Time) {
	o.Status = next
	o.UpdatedAt = now
}
