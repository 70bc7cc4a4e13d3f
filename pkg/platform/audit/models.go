package audit

import (
	"time"

	"truconn/pkg/domain"
)

// EventCategory classifies lifecycle events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// consent changes, grant creation and revocation, request decisions.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to oversight and forensics:
	// access without a live grant, violations opened, organizations revoked.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions on the consent
// and access model. Keep it transport-agnostic so stores and sinks can fan out.
//
// It is distinct from an access-log entry: access-log entries record an
// organization touching citizen data, events record state changes.
type Event struct {
	Category       EventCategory
	Timestamp      time.Time
	CitizenID      domain.CitizenID
	OrganizationID domain.OrganizationID
	Action         string
	DataCategory   domain.DataCategory
	Subject        string // id of the record acted upon
	Decision       string
	Reason         string
	RequestID      string
	// ActorID tracks who performed the action when different from CitizenID,
	// e.g. an organization relinquishing a grant or oversight advancing a violation.
	ActorID string
}

type AuditEvent string

const (
	// Consent registry
	EventCitizenOnboarded       AuditEvent = "citizen_onboarded"
	EventConsentGranted         AuditEvent = "consent_granted"
	EventConsentDenied          AuditEvent = "consent_denied"
	EventConsentScopeChanged    AuditEvent = "consent_scope_changed"
	EventGrantCascadeRevoked    AuditEvent = "grant_cascade_revoked"
	EventGrantCreated           AuditEvent = "grant_created"
	EventGrantReactivated       AuditEvent = "grant_reactivated"
	EventGrantRevoked           AuditEvent = "grant_revoked"
	EventGrantModified          AuditEvent = "grant_modified"
	EventRequestCreated         AuditEvent = "request_created"
	EventRequestApproved        AuditEvent = "request_approved"
	EventRequestRejected        AuditEvent = "request_rejected"
	EventRequestClarification   AuditEvent = "request_clarification"
	EventUnauthorizedAccess     AuditEvent = "unauthorized_access"
	EventViolationOpened        AuditEvent = "violation_opened"
	EventViolationAdvanced      AuditEvent = "violation_advanced"
	EventOrganizationRegistered AuditEvent = "organization_registered"
	EventOrganizationStatus     AuditEvent = "organization_status_changed"
)

// eventCategories maps each lifecycle event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventCitizenOnboarded:    CategoryCompliance,
	EventConsentGranted:      CategoryCompliance,
	EventConsentDenied:       CategoryCompliance,
	EventConsentScopeChanged: CategoryCompliance,
	EventGrantCascadeRevoked: CategoryCompliance,
	EventGrantCreated:        CategoryCompliance,
	EventGrantReactivated:    CategoryCompliance,
	EventGrantRevoked:        CategoryCompliance,
	EventRequestApproved:     CategoryCompliance,
	EventRequestRejected:     CategoryCompliance,

	EventUnauthorizedAccess: CategorySecurity,
	EventViolationOpened:    CategorySecurity,
	EventViolationAdvanced:  CategorySecurity,
	EventOrganizationStatus: CategorySecurity,

	EventGrantModified:          CategoryOperations,
	EventRequestCreated:         CategoryOperations,
	EventRequestClarification:   CategoryOperations,
	EventOrganizationRegistered: CategoryOperations,
}

// Category returns the EventCategory for this event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
