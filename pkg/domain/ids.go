package domain

import (
	"github.com/google/uuid"

	dErrors "truconn/pkg/domain-errors"
)

// Typed identifiers keep citizen, organization, and record IDs from being
// swapped at call sites. All are UUIDs; the nil UUID is never a valid ID.
type (
	CitizenID        uuid.UUID
	OrganizationID   uuid.UUID
	ConsentID        uuid.UUID
	GrantID          uuid.UUID
	ConsentRequestID uuid.UUID
	ViolationID      uuid.UUID
)

func (id CitizenID) String() string        { return uuid.UUID(id).String() }
func (id OrganizationID) String() string   { return uuid.UUID(id).String() }
func (id ConsentID) String() string        { return uuid.UUID(id).String() }
func (id GrantID) String() string          { return uuid.UUID(id).String() }
func (id ConsentRequestID) String() string { return uuid.UUID(id).String() }
func (id ViolationID) String() string      { return uuid.UUID(id).String() }

func (id CitizenID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id OrganizationID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ConsentID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id GrantID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id ConsentRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ViolationID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func (id CitizenID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id OrganizationID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id ConsentID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id GrantID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id ConsentRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ViolationID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *CitizenID) UnmarshalText(b []byte) error      { return unmarshalID((*uuid.UUID)(id), b) }
func (id *OrganizationID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ConsentID) UnmarshalText(b []byte) error      { return unmarshalID((*uuid.UUID)(id), b) }
func (id *GrantID) UnmarshalText(b []byte) error        { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ConsentRequestID) UnmarshalText(b []byte) error {
	return unmarshalID((*uuid.UUID)(id), b)
}
func (id *ViolationID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }

func unmarshalID(dst *uuid.UUID, b []byte) error {
	parsed, err := parseUUID(string(b))
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

// parseUUID is the single trust-boundary parser for every typed ID.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid id format")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be nil")
	}
	return parsed, nil
}

func ParseCitizenID(s string) (CitizenID, error) {
	u, err := parseUUID(s)
	return CitizenID(u), err
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID(s)
	return OrganizationID(u), err
}

func ParseConsentID(s string) (ConsentID, error) {
	u, err := parseUUID(s)
	return ConsentID(u), err
}

func ParseGrantID(s string) (GrantID, error) {
	u, err := parseUUID(s)
	return GrantID(u), err
}

func ParseConsentRequestID(s string) (ConsentRequestID, error) {
	u, err := parseUUID(s)
	return ConsentRequestID(u), err
}

func ParseViolationID(s string) (ViolationID, error) {
	u, err := parseUUID(s)
	return ViolationID(u), err
}

// New* helpers mint fresh random identifiers.
func NewCitizenID() CitizenID               { return CitizenID(uuid.New()) }
func NewOrganizationID() OrganizationID     { return OrganizationID(uuid.New()) }
func NewConsentID() ConsentID               { return ConsentID(uuid.New()) }
func NewGrantID() GrantID                   { return GrantID(uuid.New()) }
func NewConsentRequestID() ConsentRequestID { return ConsentRequestID(uuid.New()) }
func NewViolationID() ViolationID           { return ViolationID(uuid.New()) }
