package models

import (
	"strings"
	"time"

	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return sev, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown severity: "+s)
	}
}

// IssueType names the rule or manual finding behind a violation.
type IssueType string

const (
	IssueUnauthorizedAccess IssueType = "unauthorized_access"
	IssueAccessControl      IssueType = "access_control"
	IssueRevocationHandling IssueType = "revocation_handling"
	IssuePurposeLimitation  IssueType = "purpose_limitation"
	IssueRetentionPolicy    IssueType = "retention_policy"
	IssueExcessiveRequests  IssueType = "excessive_requests"
	IssueDataMinimization   IssueType = "data_minimization"
)

type ViolationStatus string

const (
	ViolationPending       ViolationStatus = "pending"
	ViolationInvestigating ViolationStatus = "investigating"
	ViolationResolved      ViolationStatus = "resolved"
)

var statusRank = map[ViolationStatus]int{
	ViolationPending:       0,
	ViolationInvestigating: 1,
	ViolationResolved:      2,
}

func ParseViolationStatus(s string) (ViolationStatus, error) {
	st := ViolationStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := statusRank[st]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unknown violation status: "+s)
	}
	return st, nil
}

// Next returns the following status, or false when s is terminal.
func (s ViolationStatus) Next() (ViolationStatus, bool) {
	switch s {
	case ViolationPending:
		return ViolationInvestigating, true
	case ViolationInvestigating:
		return ViolationResolved, true
	default:
		return "", false
	}
}

// Violation is a compliance finding against one organization.
// Status only moves forward: pending -> investigating -> resolved.
type Violation struct {
	ID             domain.ViolationID    `json:"id"`
	OrganizationID domain.OrganizationID `json:"organization_id"`
	IssueType      IssueType             `json:"issue_type"`
	Severity       Severity              `json:"severity"`
	Description    string                `json:"description"`
	DetectedAt     time.Time             `json:"detected_at"`
	Status         ViolationStatus       `json:"status"`
	ActionTaken    string                `json:"action_taken"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func NewViolation(orgID domain.OrganizationID, issue IssueType, severity Severity, description string, now time.Time) (*Violation, error) {
	issue = IssueType(strings.TrimSpace(string(issue)))
	if issue == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "issue type is required")
	}
	if _, err := ParseSeverity(string(severity)); err != nil {
		return nil, err
	}
	return &Violation{
		ID:             domain.NewViolationID(),
		OrganizationID: orgID,
		IssueType:      issue,
		Severity:       severity,
		Description:    strings.TrimSpace(description),
		DetectedAt:     now,
		Status:         ViolationPending,
		UpdatedAt:      now,
	}, nil
}

func (v *Violation) IsResolved() bool {
	return v.Status == ViolationResolved
}

// CanAdvanceTo reports whether target is strictly after the current status.
func (v *Violation) CanAdvanceTo(target ViolationStatus) error {
	if statusRank[target] <= statusRank[v.Status] {
		return dErrors.New(dErrors.CodeInvalidState,
			"violation cannot move from "+string(v.Status)+" to "+string(target))
	}
	return nil
}

// Advance moves to target. An empty action keeps the previous note.
func (v *Violation) Advance(target ViolationStatus, action string, now time.Time) {
	v.Status = target
	if action = strings.TrimSpace(action); action != "" {
		v.ActionTaken = action
	}
	v.UpdatedAt = now
}

// ViolationFilter narrows listings. Zero values match everything.
type ViolationFilter struct {
	OrganizationID *domain.OrganizationID
	Status         ViolationStatus
	Unresolved     bool
}

func (f ViolationFilter) Matches(v *Violation) bool {
	if f.OrganizationID != nil && v.OrganizationID != *f.OrganizationID {
		return false
	}
	if f.Status != "" && v.Status != f.Status {
		return false
	}
	if f.Unresolved && v.IsResolved() {
		return false
	}
	return true
}
