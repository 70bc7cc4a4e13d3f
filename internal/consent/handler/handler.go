package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"truconn/internal/consent/models"
	"truconn/internal/consent/service"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/httputil"
	"truconn/pkg/platform/middleware/auth"
	request "truconn/pkg/platform/middleware/request"
	"truconn/pkg/requestcontext"
)

// Service defines the consent, grant and request operations exposed over HTTP.
type Service interface {
	Onboard(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID, choices []service.CategoryChoice) ([]*models.Consent, error)
	GetConsents(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID) ([]*models.Consent, error)
	SetConsent(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID, category domain.DataCategory, update models.ConsentUpdate) (*models.Consent, error)

	Grant(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory, purpose string) (*models.AccessGrant, error)
	Revoke(ctx context.Context, actor domain.Principal, grantID domain.GrantID) (*models.AccessGrant, error)
	Modify(ctx context.Context, actor domain.Principal, grantID domain.GrantID, purpose *string) (*models.AccessGrant, error)
	ListByCitizen(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID, filter models.GrantFilter) ([]*models.AccessGrant, error)
	ListByOrganization(ctx context.Context, actor domain.Principal, orgID domain.OrganizationID, filter models.GrantFilter) ([]*models.AccessGrant, error)

	CreateRequest(ctx context.Context, actor domain.Principal, orgID domain.OrganizationID, citizenID domain.CitizenID, dataType domain.DataCategory, purpose string) (*models.ConsentRequest, error)
	Approve(ctx context.Context, actor domain.Principal, requestID domain.ConsentRequestID) (*service.Approval, error)
	Reject(ctx context.Context, actor domain.Principal, requestID domain.ConsentRequestID) (*models.ConsentRequest, error)
	AddClarification(ctx context.Context, actor domain.Principal, requestID domain.ConsentRequestID, message string) (*models.ConsentRequest, error)
	ListRequestsByCitizen(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID, status models.RequestStatus) ([]*models.ConsentRequest, error)
	ListRequestsByOrganization(ctx context.Context, actor domain.Principal, orgID domain.OrganizationID, status models.RequestStatus) ([]*models.ConsentRequest, error)
}

// Handler handles consent, grant and request endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the routes. Authentication is applied by the caller; each
// group narrows the roles it admits and the service checks ownership.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleCitizen))
		r.Post("/v1/citizen/onboarding", h.handleOnboard)
		r.Get("/v1/citizen/consents", h.handleGetConsents)
		r.Put("/v1/citizen/consents/{category}", h.handleSetConsent)
		r.Get("/v1/citizen/grants", h.handleListCitizenGrants)
		r.Post("/v1/citizen/grants", h.handleGrant)
		r.Patch("/v1/grants/{id}", h.handleModify)
		r.Get("/v1/citizen/requests", h.handleListCitizenRequests)
		r.Post("/v1/requests/{id}/approve", h.handleApprove)
		r.Post("/v1/requests/{id}/reject", h.handleReject)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleCitizen, domain.RoleOrganization))
		r.Post("/v1/grants/{id}/revoke", h.handleRevoke)
		r.Post("/v1/requests/{id}/clarifications", h.handleAddClarification)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleOrganization))
		r.Post("/v1/organization/requests", h.handleCreateRequest)
		r.Get("/v1/organization/requests", h.handleListOrganizationRequests)
		r.Get("/v1/organization/grants", h.handleListOrganizationGrants)
	})
}

// fail logs and writes err. Client errors are logged at warn level.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	status := httputil.StatusFor(dErrors.CodeOf(err))
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg,
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func principal(r *http.Request) domain.Principal {
	return requestcontext.Principal(r.Context())
}

func grantFilterFrom(r *http.Request) (models.GrantFilter, error) {
	q := r.URL.Query()
	filter := models.GrantFilter{Text: q.Get("q")}
	if raw := q.Get("status"); raw != "" {
		st, err := models.ParseGrantStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = st
	}
	return filter, nil
}

func requestStatusFrom(r *http.Request) (models.RequestStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return "", nil
	}
	return models.ParseRequestStatus(raw)
}
