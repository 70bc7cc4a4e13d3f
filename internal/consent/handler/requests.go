package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"truconn/internal/consent/models"
	"truconn/pkg/domain"
	"truconn/pkg/platform/httputil"
)

type createRequestRequest struct {
	CitizenID string `json:"citizen_id"`
	DataType  string `json:"data_type"`
	Purpose   string `json:"purpose"`
}

type clarificationRequest struct {
	Message string `json:"message"`
}

type requestsResponse struct {
	Requests []*models.ConsentRequest `json:"requests"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	citizenID, err := domain.ParseCitizenID(req.CitizenID)
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
	created, err := h.service.CreateRequest(r.Context(), actor, actor.OrganizationID(), citizenID, dataType, req.Purpose)
	if err != nil {
		h.fail(w, r, "failed to create consent request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseConsentRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	approval, err := h.service.Approve(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, "failed to approve consent request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, approval)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseConsentRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rejected, err := h.service.Reject(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, "failed to reject consent request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rejected)
}

func (h *Handler) handleAddClarification(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseConsentRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req clarificationRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	updated, err := h.service.AddClarification(r.Context(), principal(r), id, req.Message)
	if err != nil {
		h.fail(w, r, "failed to add clarification", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, updated)
}

func (h *Handler) handleListCitizenRequests(w http.ResponseWriter, r *http.Request) {
	status, err := requestStatusFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor := principal(r)
	reqs, err := h.service.ListRequestsByCitizen(r.Context(), actor, actor.CitizenID(), status)
	if err != nil {
		h.fail(w, r, "failed to list consent requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requestsResponse{Requests: reqs})
}

func (h *Handler) handleListOrganizationRequests(w http.ResponseWriter, r *http.Request) {
	status, err := requestStatusFrom(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	actor := principal(r)
	reqs, err := h.service.ListRequestsByOrganization(r.Context(), actor, actor.OrganizationID(), status)
	if err != nil {
		h.fail(w, r, "failed to list consent requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requestsResponse{Requests: reqs})
}
