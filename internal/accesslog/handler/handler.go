package handler

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"truconn/internal/accesslog/models"
	"truconn/internal/accesslog/service"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/httputil"
	"truconn/pkg/platform/middleware/auth"
	request "truconn/pkg/platform/middleware/request"
	"truconn/pkg/requestcontext"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Service defines the access log operations exposed over HTTP.
type Service interface {
	Append(ctx context.Context, actor domain.Principal, in service.AppendInput) (*models.AuditEntry, error)
	Query(ctx context.Context, actor domain.Principal, filter models.Filter) (iter.Seq2[*models.AuditEntry, error], error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.With(auth.RequireRole(domain.RoleCitizen)).Get("/v1/citizen/access-log", h.handleQuery)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleOrganization))
		r.Post("/v1/organization/access", h.handleAppend)
		r.Get("/v1/organization/access-log", h.handleQuery)
	})

	r.With(auth.RequireRole(domain.RoleOversight)).Get("/v1/oversight/access-log", h.handleQuery)
}

type appendRequest struct {
	CitizenID  string `json:"citizen_id"`
	DataType   string `json:"data_type,omitempty"`
	Purpose    string `json:"purpose"`
	AccessType string `json:"access_type"`
}

type entriesResponse struct {
	Entries []*models.AuditEntry `json:"entries"`
	Count   int                  `json:"count"`
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.Purpose = strings.TrimSpace(req.Purpose)

	citizenID, err := domain.ParseCitizenID(strings.TrimSpace(req.CitizenID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	accessType, err := models.ParseAccessType(req.AccessType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var dataType domain.DataCategory
	if strings.TrimSpace(req.DataType) != "" {
		if dataType, err = domain.ParseDataCategory(req.DataType); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	entry, err := h.service.Append(r.Context(), requestcontext.Principal(r.Context()), service.AppendInput{
		CitizenID:  citizenID,
		DataType:   dataType,
		Purpose:    req.Purpose,
		AccessType: accessType,
	})
	if err != nil {
		h.fail(w, r, "failed to record access", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

// handleQuery serves all three access-log views. Role scoping happens in the
// service; only oversight may pass citizen_id or organization_id.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	actor := requestcontext.Principal(r.Context())
	filter, limit, err := filterFrom(r, actor.IsOversight())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	seq, err := h.service.Query(r.Context(), actor, filter)
	if err != nil {
		h.fail(w, r, "failed to query access log", err)
		return
	}
	entries, err := service.Collect(seq, limit)
	if err != nil {
		h.fail(w, r, "failed to read access log", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entriesResponse{Entries: entries, Count: len(entries)})
}

func filterFrom(r *http.Request, scoped bool) (models.Filter, int, error) {
	q := r.URL.Query()
	filter := models.Filter{Text: strings.TrimSpace(q.Get("q"))}

	var err error
	if filter.From, err = parseBound(q.Get("from"), false); err != nil {
		return filter, 0, err
	}
	if filter.To, err = parseBound(q.Get("to"), true); err != nil {
		return filter, 0, err
	}

	if scoped {
		if raw := q.Get("citizen_id"); raw != "" {
			id, err := domain.ParseCitizenID(raw)
			if err != nil {
				return filter, 0, err
			}
			filter.CitizenID = &id
		}
		if raw := q.Get("organization_id"); raw != "" {
			id, err := domain.ParseOrganizationID(raw)
			if err != nil {
				return filter, 0, err
			}
			filter.OrganizationID = &id
		}
	}

	limit := defaultLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return filter, 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxLimit)
	}
	return filter, limit, nil
}

// parseBound accepts RFC 3339 or a bare date. A bare upper bound covers the
// whole day.
func parseBound(raw string, upper bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "dates must be RFC 3339 or YYYY-MM-DD")
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
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
