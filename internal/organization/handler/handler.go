package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"truconn/internal/organization/models"
	"truconn/pkg/domain"
	"truconn/pkg/platform/httputil"
	"truconn/pkg/platform/middleware/auth"
	request "truconn/pkg/platform/middleware/request"
)

// Service defines the directory operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, name, sector string, status models.Status) (*models.Organization, error)
	Get(ctx context.Context, id domain.OrganizationID) (*models.Organization, error)
	List(ctx context.Context, status models.Status) ([]*models.Organization, error)
	SetStatus(ctx context.Context, id domain.OrganizationID, status models.Status) (*models.Organization, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts oversight directory routes. Authentication is applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleOversight))
		r.Post("/v1/oversight/organizations", h.handleRegister)
		r.Get("/v1/oversight/organizations", h.handleList)
		r.Get("/v1/oversight/organizations/{id}", h.handleGet)
		r.Patch("/v1/oversight/organizations/{id}", h.handleSetStatus)
	})
}

type registerRequest struct {
	Name   string `json:"name"`
	Sector string `json:"sector"`
	Status string `json:"status,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type listResponse struct {
	Organizations []*models.Organization `json:"organizations"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var status models.Status
	if req.Status != "" {
		st, err := models.ParseStatus(req.Status)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		status = st
	}
	org, err := h.service.Register(ctx, req.Name, req.Sector, status)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to register organization",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, org)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var status models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		status = st
	}
	orgs, err := h.service.List(r.Context(), status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if orgs == nil {
		orgs = []*models.Organization{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Organizations: orgs})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	org, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseOrganizationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req statusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	org, err := h.service.SetStatus(ctx, id, status)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to change organization status",
			"request_id", request.GetRequestID(ctx),
			"organization_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}
