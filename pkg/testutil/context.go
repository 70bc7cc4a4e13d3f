package testutil

import (
	"net/http"

	"github.com/google/uuid"

	"truconn/pkg/domain"
	"truconn/pkg/requestcontext"
)

// WithPrincipal attaches the identity the auth middleware would resolve from
// a bearer token.
func WithPrincipal(req *http.Request, role domain.Role, id uuid.UUID) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), domain.Principal{ID: id, Role: role})
	return req.WithContext(ctx)
}

// AsCitizen is WithPrincipal for the citizen role.
func AsCitizen(req *http.Request, id domain.CitizenID) *http.Request {
	return WithPrincipal(req, domain.RoleCitizen, uuid.UUID(id))
}

// AsOrganization is WithPrincipal for the organization role.
func AsOrganization(req *http.Request, id domain.OrganizationID) *http.Request {
	return WithPrincipal(req, domain.RoleOrganization, uuid.UUID(id))
}

// AsOversight is WithPrincipal for the oversight role.
func AsOversight(req *http.Request) *http.Request {
	return WithPrincipal(req, domain.RoleOversight, uuid.New())
}
