package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"truconn/internal/compliance/models"
	"truconn/internal/compliance/service"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/httputil"
	"truconn/pkg/platform/middleware/auth"
	request "truconn/pkg/platform/middleware/request"
	"truconn/pkg/requestcontext"
)

// Service defines the scoring and violation operations exposed over HTTP.
type Service interface {
	ExposureScore(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID) (*models.ExposureReport, error)
	ComplianceReport(ctx context.Context, actor domain.Principal, orgID domain.OrganizationID) (*models.ComplianceReport, error)
	NationalOverview(ctx context.Context, actor domain.Principal) (*models.NationalOverview, error)
	Scan(ctx context.Context, actor domain.Principal, orgID domain.OrganizationID) ([]*models.Violation, error)
	OpenViolation(ctx context.Context, actor domain.Principal, in service.OpenViolationInput) (*models.Violation, error)
	AdvanceViolation(ctx context.Context, actor domain.Principal, id domain.ViolationID, target models.ViolationStatus, action string) (*models.Violation, error)
	ListViolations(ctx context.Context, actor domain.Principal, filter models.ViolationFilter) ([]*models.Violation, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireRole(domain.RoleCitizen)).Get("/v1/citizen/exposure", h.handleExposure)
	r.With(auth.RequireRole(domain.RoleOrganization)).Get("/v1/organization/compliance", h.handleOwnCompliance)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleOversight))
		r.Get("/v1/oversight/organizations/{id}/compliance", h.handleCompliance)
		r.Post("/v1/oversight/organizations/{id}/scan", h.handleScan)
		r.Get("/v1/oversight/overview", h.handleOverview)
		r.Get("/v1/oversight/violations", h.handleListViolations)
		r.Post("/v1/oversight/violations", h.handleOpenViolation)
		r.Post("/v1/oversight/violations/{id}/advance", h.handleAdvanceViolation)
	})
}

type openViolationRequest struct {
	OrganizationID string `json:"organization_id"`
	IssueType      string `json:"issue_type"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
}

type advanceViolationRequest struct {
	Status      string `json:"status,omitempty"`
	ActionTaken string `json:"action_taken,omitempty"`
}

type violationsResponse struct {
	Violations []*models.Violation `json:"violations"`
}

func (h *Handler) handleExposure(w http.ResponseWriter, r *http.Request) {
	actor := principal(r)
	report, err := h.service.ExposureScore(r.Context(), actor, actor.CitizenID())
	if err != nil {
		h.fail(w, r, "failed to compute exposure score", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleOwnCompliance(w http.ResponseWriter, r *http.Request) {
	actor := principal(r)
	h.writeCompliance(w, r, actor.OrganizationID())
}

func (h *Handler) handleCompliance(w http.ResponseWriter, r *http.Request) {
	orgID, err := domain.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeCompliance(w, r, orgID)
}

func (h *Handler) writeCompliance(w http.ResponseWriter, r *http.Request, orgID domain.OrganizationID) {
	report, err := h.service.ComplianceReport(r.Context(), principal(r), orgID)
	if err != nil {
		h.fail(w, r, "failed to compute compliance report", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	orgID, err := domain.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	opened, err := h.service.Scan(r.Context(), principal(r), orgID)
	if err != nil {
		h.fail(w, r, "failed to scan organization", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, violationsResponse{Violations: opened})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.NationalOverview(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, "failed to compute national overview", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, overview)
}

func (h *Handler) handleListViolations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter models.ViolationFilter
	if raw := q.Get("organization_id"); raw != "" {
		id, err := domain.ParseOrganizationID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.OrganizationID = &id
	}
	if raw := q.Get("status"); raw != "" {
		st, err := models.ParseViolationStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = st
	}
	if raw := q.Get("unresolved"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unresolved must be true or false"))
			return
		}
		filter.Unresolved = b
	}

	list, err := h.service.ListViolations(r.Context(), principal(r), filter)
	if err != nil {
		h.fail(w, r, "failed to list violations", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, violationsResponse{Violations: list})
}

func (h *Handler) handleOpenViolation(w http.ResponseWriter, r *http.Request) {
	var req openViolationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	orgID, err := domain.ParseOrganizationID(strings.TrimSpace(req.OrganizationID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	severity, err := models.ParseSeverity(req.Severity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.OpenViolation(r.Context(), principal(r), service.OpenViolationInput{
		OrganizationID: orgID,
		IssueType:      models.IssueType(strings.ToLower(strings.TrimSpace(req.IssueType))),
		Severity:       severity,
		Description:    strings.TrimSpace(req.Description),
	})
	if err != nil {
		h.fail(w, r, "failed to open violation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleAdvanceViolation(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseViolationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// The body is optional: an empty one advances to the next status.
	var req advanceViolationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, err)
		return
	}
	var target models.ViolationStatus
	if strings.TrimSpace(req.Status) != "" {
		if target, err = models.ParseViolationStatus(req.Status); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	v, err := h.service.AdvanceViolation(r.Context(), principal(r), id, target, strings.TrimSpace(req.ActionTaken))
	if err != nil {
		h.fail(w, r, "failed to advance violation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func principal(r *http.Request) domain.Principal {
	return requestcontext.Principal(r.Context())
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, "request_id", request.GetRequestID(ctx), "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", request.GetRequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}
