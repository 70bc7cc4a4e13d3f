package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"truconn/internal/consent/models"
	"truconn/pkg/domain"
	"truconn/pkg/platform/httputil"
)

type grantRequest struct {
	OrganizationID string `json:"organization_id"`
	DataType       string `json:"data_type"`
	Purpose        string `json:"purpose"`
}

type modifyGrantRequest struct {
	Purpose *string `json:"purpose,omitempty"`
}

type grantsResponse struct {
	Grants []*models.AccessGrant `json:"grants"`
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	orgID, err := domain.ParseOrganizationID(req.OrganizationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	dataType, err := domain.ParseDataCategory(req.DataType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	actor := principal(r)
	grant, err := h.service.Grant(r.Context(), actor, actor.CitizenID(), orgID, dataType, req.Purpose)
	if err != nil {
		h.fail(w, r, "failed to create grant", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, grant)
}

func (h *Handler) handleModify(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseGrantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req modifyGrantRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	grant, err := h.service.Modify(r.Context(), principal(r), id, req.Purpose)
	if err != nil {
		h.fail(w, r, "failed to modify grant", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, grant)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseGrantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	grant, err := h.service.Revoke(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, "failed to revoke grant", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, grant)
}

func (h *Handler) handleListCitizenGrants(w http.ResponseWriter, r *http.Request) {
	filter, err := grantFilterFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor := principal(r)
	grants, err := h.service.ListByCitizen(r.Context(), actor, actor.CitizenID(), filter)
	if err != nil {
		h.fail(w, r, "failed to list grants", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, grantsResponse{Grants: grants})
}

func (h *Handler) handleListOrganizationGrants(w http.ResponseWriter, r *http.Request) {
	filter, err := grantFilterFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor := principal(r)
	grants, err := h.service.ListByOrganization(r.Context(), actor, actor.OrganizationID(), filter)
	if err != nil {
		h.fail(w, r, "failed to list grants", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, grantsResponse{Grants: grants})
}
