package models

import (
	"strings"
	"time"

	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRevoked  RequestStatus = "revoked"
)

func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRevoked:
		return st, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidState, "unknown request status: "+s)
	}
}

// IsTerminal reports whether no further transition is possible.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRevoked
}

// Clarification is one message in a request's side channel.
type Clarification struct {
	AuthorRole domain.Role `json:"author_role"`
	AuthorID   string      `json:"author_id"`
	Message    string      `json:"message"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ConsentRequest is an organization asking a citizen for access to one category.
// pending -> approved | revoked; both are terminal.
type ConsentRequest struct {
	ID             domain.ConsentRequestID `json:"id"`
	CitizenID      domain.CitizenID        `json:"citizen_id"`
	OrganizationID domain.OrganizationID   `json:"organization_id"`
	DataType       domain.DataCategory     `json:"data_type"`
	Purpose        string                  `json:"purpose"`
	Status         RequestStatus           `json:"status"`
	RequestedAt    time.Time               `json:"requested_at"`
	DecidedAt      *time.Time              `json:"decided_at,omitempty"`
	Clarifications []Clarification         `json:"clarifications"`

	OrganizationName string `json:"organization_name,omitempty"`
}

func NewConsentRequest(citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory, purpose string, now time.Time) (*ConsentRequest, error) {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose is required")
	}
	return &ConsentRequest{
		ID:             domain.NewConsentRequestID(),
		CitizenID:      citizenID,
		OrganizationID: orgID,
		DataType:       dataType,
		Purpose:        purpose,
		Status:         RequestStatusPending,
		RequestedAt:    now,
		Clarifications: []Clarification{},
	}, nil
}

// CanDecide allows approve or reject only from pending.
func (r *ConsentRequest) CanDecide() error {
	if r.Status != RequestStatusPending {
		return dErrors.New(dErrors.CodeInvalidState, "request is already "+string(r.Status))
	}
	return nil
}

func (r *ConsentRequest) Approve(now time.Time) {
	r.Status = RequestStatusApproved
	r.DecidedAt = &now
}

func (r *ConsentRequest) Reject(now time.Time) {
	r.Status = RequestStatusRevoked
	r.DecidedAt = &now
}

func (r *ConsentRequest) Clone() *ConsentRequest {
	out := *r
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		out.DecidedAt = &t
	}
	out.Clarifications = append([]Clarification{}, r.Clarifications...)
	return &out
}
