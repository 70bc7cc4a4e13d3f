package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"truconn/internal/consent/models"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	"truconn/pkg/platform/sentinel"
	"truconn/pkg/requestcontext"
)

// Approval is the result of approving a request: the request, the consent
// it updated and the grant it created, all committed together.
type Approval struct {
	Request *models.ConsentRequest `json:"request"`
	Consent *models.Consent        `json:"consent"`
	Grant   *models.AccessGrant    `json:"grant"`
}

const maxClarificationLength = 2000

// CreateRequest records an organization's request for one category of a citizen's data.
func (s *Service) CreateRequest(ctx context.Context, actor domain.Principal, orgID domain.OrganizationID, citizenID domain.CitizenID, dataType domain.DataCategory, purpose string) (req *models.ConsentRequest, err error) {
	ctx, span := s.startSpan(ctx, "CreateRequest")
	defer func() { endSpan(span, err) }()

	if err := requireCategory(dataType); err != nil {
		return nil, err
	}
	if !actor.IsOrganization(orgID) {
		return nil, unauthorized("only the requesting organization may create a request")
	}
	org, err := s.requireGrantableOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	req, err = models.NewConsentRequest(citizenID, orgID, dataType, purpose, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.runInTx(ctx, "create_request", citizenID, func(ctx context.Context, store Store) error {
		if err := requireCitizenExists(ctx, store, citizenID); err != nil {
			return err
		}
		if err := store.SaveRequest(ctx, req); err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:         string(audit.EventRequestCreated),
			CitizenID:      citizenID,
			OrganizationID: orgID,
			DataCategory:   dataType,
			Subject:        req.ID.String(),
			ActorID:        actorID(actor),
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementRequestTransition(string(models.RequestStatusPending))
	req.OrganizationName = org.Name
	return req, nil
}

// Approve moves a pending request to approved. It adds the organization to
// the category's consent (creating the consent if absent) and then grants
// access, in one transaction.
func (s *Service) Approve(ctx context.Context, actor domain.Principal, requestID domain.ConsentRequestID) (approval *Approval, err error) {
	ctx, span := s.startSpan(ctx, "Approve")
	defer func() { endSpan(span, err) }()

	current, err := s.store.FindRequest(ctx, requestID)
	if err != nil {
		return nil, wrapStoreErr(err, "consent request")
	}
	if err := requireCitizen(actor, current.CitizenID); err != nil {
		return nil, err
	}
	org, err := s.requireGrantableOrganization(ctx, current.OrganizationID)
	if err != nil {
		return nil, err
	}

	var reactivated bool
	err = s.runInTx(ctx, "approve_request", current.CitizenID, func(ctx context.Context, store Store) error {
		req, err := store.FindRequest(ctx, requestID)
		if err != nil {
			return wrapStoreErr(err, "consent request")
		}
		if err := req.CanDecide(); err != nil {
			return err
		}

		var orgs []domain.OrganizationID
		existing, err := store.FindConsent(ctx, req.CitizenID, req.DataType)
		switch {
		case err == nil:
			if existing.Allowed {
				orgs = slices.Clone(existing.Organizations)
			}
		case !errors.Is(err, sentinel.ErrNotFound):
			return err
		}
		orgs = append(orgs, req.OrganizationID)
		consent, _, err := s.setConsentInTx(ctx, store, actor, req.CitizenID, req.DataType, models.ConsentUpdate{
			Allowed:       true,
			Organizations: &orgs,
		})
		if err != nil {
			return err
		}

		grant, re, err := s.grantInTx(ctx, store, actor, req.CitizenID, req.OrganizationID, req.DataType, req.Purpose)
		if err != nil {
			return err
		}
		reactivated = re

		req.Approve(requestcontext.Now(ctx))
		if err := store.SaveRequest(ctx, req); err != nil {
			return err
		}
		if err := s.emit(ctx, audit.Event{
			Action:         string(audit.EventRequestApproved),
			CitizenID:      req.CitizenID,
			OrganizationID: req.OrganizationID,
			DataCategory:   req.DataType,
			Subject:        req.ID.String(),
			Decision:       string(models.RequestStatusApproved),
			ActorID:        actorID(actor),
		}); err != nil {
			return err
		}
		approval = &Approval{Request: req, Consent: consent, Grant: grant}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRequestTransition(string(models.RequestStatusApproved))
	s.metrics.IncrementGrantCreated(reactivated)
	approval.Request.OrganizationName = org.Name
	approval.Grant.OrganizationName = org.Name
	s.logger.InfoContext(ctx, "consent request approved",
		"request_id", requestcontext.RequestID(ctx),
		"consent_request_id", requestID,
		"organization_id", org.ID,
	)
	return approval, nil
}

// Reject moves a pending request to revoked. Nothing else changes.
func (s *Service) Reject(ctx context.Context, actor domain.Principal, requestID domain.ConsentRequestID) (req *models.ConsentRequest, err error) {
	ctx, span := s.startSpan(ctx, "Reject")
	defer func() { endSpan(span, err) }()

	current, err := s.store.FindRequest(ctx, requestID)
	if err != nil {
		return nil, wrapStoreErr(err, "consent request")
	}
	if err := requireCitizen(actor, current.CitizenID); err != nil {
		return nil, err
	}

	err = s.runInTx(ctx, "reject_request", current.CitizenID, func(ctx context.Context, store Store) error {
		r, err := store.FindRequest(ctx, requestID)
		if err != nil {
			return wrapStoreErr(err, "consent request")
		}
		if err := r.CanDecide(); err != nil {
			return err
		}
		r.Reject(requestcontext.Now(ctx))
		if err := store.SaveRequest(ctx, r); err != nil {
			return err
		}
		req = r
		return s.emit(ctx, audit.Event{
			Action:         string(audit.EventRequestRejected),
			CitizenID:      r.CitizenID,
			OrganizationID: r.OrganizationID,
			DataCategory:   r.DataType,
			Subject:        r.ID.String(),
			Decision:       string(models.RequestStatusRevoked),
			ActorID:        actorID(actor),
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementRequestTransition(string(models.RequestStatusRevoked))
	return req, nil
}

// AddClarification appends a message to a pending request. The status is unchanged.
func (s *Service) AddClarification(ctx context.Context, actor domain.Principal, requestID domain.ConsentRequestID, message string) (req *models.ConsentRequest, err error) {
	ctx, span := s.startSpan(ctx, "AddClarification")
	defer func() { endSpan(span, err) }()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "message is required")
	}
	if len(message) > maxClarificationLength {
		return nil, dErrors.New(dErrors.CodeValidation, "message is too long")
	}
	current, err := s.store.FindRequest(ctx, requestID)
	if err != nil {
		return nil, wrapStoreErr(err, "consent request")
	}
	if !actor.IsCitizen(current.CitizenID) && !actor.IsOrganization(current.OrganizationID) {
		return nil, unauthorized("only the citizen or the requesting organization may add clarifications")
	}

	err = s.runInTx(ctx, "clarify_request", current.CitizenID, func(ctx context.Context, store Store) error {
		r, err := store.FindRequest(ctx, requestID)
		if err != nil {
			return wrapStoreErr(err, "consent request")
		}
		if r.Status != models.RequestStatusPending {
			return dErrors.New(dErrors.CodeInvalidState, "request is already "+string(r.Status))
		}
		r.Clarifications = append(r.Clarifications, models.Clarification{
			AuthorRole: actor.Role,
			AuthorID:   actor.ID.String(),
			Message:    message,
			CreatedAt:  requestcontext.Now(ctx),
		})
		if err := store.SaveRequest(ctx, r); err != nil {
			return err
		}
		req = r
		return s.emit(ctx, audit.Event{
			Action:         string(audit.EventRequestClarification),
			CitizenID:      r.CitizenID,
			OrganizationID: r.OrganizationID,
			Subject:        r.ID.String(),
			ActorID:        actorID(actor),
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequestsByCitizen returns the citizen's requests, newest first.
// An empty status matches all.
func (s *Service) ListRequestsByCitizen(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID, status models.RequestStatus) ([]*models.ConsentRequest, error) {
	if err := requireCitizenOrOversight(actor, citizenID); err != nil {
		return nil, err
	}
	all, err := s.store.ListRequestsByCitizen(ctx, citizenID)
	if err != nil {
		return nil, wrapStoreErr(err, "consent requests")
	}
	return s.decorateRequests(ctx, all, status)
}

// ListRequestsByOrganization returns the organization's requests, newest first.
func (s *Service) ListRequestsByOrganization(ctx context.Context, actor domain.Principal, orgID domain.OrganizationID, status models.RequestStatus) ([]*models.ConsentRequest, error) {
	if err := requireOrganizationOrOversight(actor, orgID); err != nil {
		return nil, err
	}
	all, err := s.store.ListRequestsByOrganization(ctx, orgID)
	if err != nil {
		return nil, wrapStoreErr(err, "consent requests")
	}
	return s.decorateRequests(ctx, all, status)
}

func (s *Service) decorateRequests(ctx context.Context, all []*models.ConsentRequest, status models.RequestStatus) ([]*models.ConsentRequest, error) {
	var ids []domain.OrganizationID
	for _, r := range all {
		if !slices.Contains(ids, r.OrganizationID) {
			ids = append(ids, r.OrganizationID)
		}
	}
	orgs, err := s.orgs.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ConsentRequest, 0, len(all))
	for _, r := range all {
		if status != "" && r.Status != status {
			continue
		}
		if org, ok := orgs[r.OrganizationID]; ok {
			r.OrganizationName = org.Name
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b *models.ConsentRequest) int {
		return b.RequestedAt.Compare(a.RequestedAt)
	})
	return out, nil
}
