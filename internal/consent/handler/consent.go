package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"truconn/internal/consent/models"
	"truconn/internal/consent/service"
	"truconn/pkg/domain"
	"truconn/pkg/platform/httputil"
	pkgstrings "truconn/pkg/platform/strings"
)

type categoryChoice struct {
	Category string `json:"category"`
	Allowed  bool   `json:"allowed"`
	Duration string `json:"duration"`
}

type onboardRequest struct {
	Choices []categoryChoice `json:"choices"`
}

type setConsentRequest struct {
	Allowed       *bool     `json:"allowed"`
	Organizations *[]string `json:"organizations,omitempty"`
	Duration      *string   `json:"duration,omitempty"`
	Details       *string   `json:"details,omitempty"`
}

type consentsResponse struct {
	Consents []*models.Consent `json:"consents"`
}

func (h *Handler) handleOnboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	choices := make([]service.CategoryChoice, 0, len(req.Choices))
	for _, c := range req.Choices {
		category, err := domain.ParseDataCategory(c.Category)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		choices = append(choices, service.CategoryChoice{Category: category, Allowed: c.Allowed, Duration: c.Duration})
	}

	actor := principal(r)
	consents, err := h.service.Onboard(r.Context(), actor, actor.CitizenID(), choices)
	if err != nil {
		h.fail(w, r, "failed to onboard citizen", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, consentsResponse{Consents: consents})
}

func (h *Handler) handleGetConsents(w http.ResponseWriter, r *http.Request) {
	actor := principal(r)
	consents, err := h.service.GetConsents(r.Context(), actor, actor.CitizenID())
	if err != nil {
		h.fail(w, r, "failed to list consents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, consentsResponse{Consents: consents})
}

func (h *Handler) handleSetConsent(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseDataCategory(chi.URLParam(r, "category"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req setConsentRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	update := models.ConsentUpdate{
		Allowed:  *req.Allowed,
		Duration: req.Duration,
		Details:  req.Details,
	}
	if req.Organizations != nil {
		raw := pkgstrings.Canonical(*req.Organizations)
		orgs := make([]domain.OrganizationID, 0, len(raw))
		for _, s := range raw {
			id, err := domain.ParseOrganizationID(s)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			orgs = append(orgs, id)
		}
		update.Organizations = &orgs
	}

	actor := principal(r)
	consent, err := h.service.SetConsent(r.Context(), actor, actor.CitizenID(), category, update)
	if err != nil {
		h.fail(w, r, "failed to update consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, consent)
}
