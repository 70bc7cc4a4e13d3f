package domain

import (
	"github.com/google/uuid"

	dErrors "truconn/pkg/domain-errors"
)

// Role is the actor class supplied by the session boundary.
type Role string

const (
	RoleCitizen      Role = "citizen"
	RoleOrganization Role = "organization"
	RoleOversight    Role = "oversight"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCitizen, RoleOrganization, RoleOversight:
		return r, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported role")
	}
}

// Principal is an authenticated identity. The core trusts it as given.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

func (p Principal) IsZero() bool {
	return p.ID == uuid.Nil || p.Role == ""
}

// IsCitizen reports whether the principal is the given citizen.
func (p Principal) IsCitizen(id CitizenID) bool {
	return p.Role == RoleCitizen && p.ID == uuid.UUID(id)
}

// IsOrganization reports whether the principal acts for the given organization.
func (p Principal) IsOrganization(id OrganizationID) bool {
	return p.Role == RoleOrganization && p.ID == uuid.UUID(id)
}

func (p Principal) IsOversight() bool {
	return p.Role == RoleOversight
}

// CitizenID returns the principal's id typed as a citizen.
func (p Principal) CitizenID() CitizenID {
	return CitizenID(p.ID)
}

// OrganizationID returns the principal's id typed as an organization.
func (p Principal) OrganizationID() OrganizationID {
	return OrganizationID(p.ID)
}
