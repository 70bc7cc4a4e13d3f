package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"truconn/internal/consent/models"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	"truconn/pkg/platform/sentinel"
	"truconn/pkg/requestcontext"
)

// Grant creates, or reactivates, the grant for (citizen, organization, dataType).
// The citizen's consent for dataType must already be allowed and cover the organization.
func (s *Service) Grant(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory, purpose string) (grant *models.AccessGrant, err error) {
	ctx, span := s.startSpan(ctx, "Grant")
	defer func() { endSpan(span, err) }()

	if err := requireCategory(dataType); err != nil {
		return nil, err
	}
	if err := requireCitizen(actor, citizenID); err != nil {
		return nil, err
	}
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose is required")
	}
	org, err := s.requireGrantableOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var reactivated bool
	err = s.runInTx(ctx, "grant", citizenID, func(ctx context.Context, store Store) error {
		if err := requireCitizenExists(ctx, store, citizenID); err != nil {
			return err
		}
		c, err := store.FindConsent(ctx, citizenID, dataType)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if c == nil || !c.Covers(orgID) {
			return dErrors.New(dErrors.CodeInvalidState, "consent for "+string(dataType)+" does not cover the organization")
		}
		g, re, err := s.grantInTx(ctx, store, actor, citizenID, orgID, dataType, purpose)
		grant, reactivated = g, re
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementGrantCreated(reactivated)
	grant.OrganizationName = org.Name
	return grant, nil
}

// grantInTx assumes the backing consent has been checked or just written.
func (s *Service) grantInTx(ctx context.Context, store Store, actor domain.Principal, citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory, purpose string) (*models.AccessGrant, bool, error) {
	now := requestcontext.Now(ctx)
	g, err := store.FindGrantByTriple(ctx, citizenID, orgID, dataType)
	reactivated := err == nil
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		g = models.NewAccessGrant(citizenID, orgID, dataType, purpose, now)
	case err != nil:
		return nil, false, err
	default:
		g.Reactivate(purpose)
	}
	if err := store.SaveGrant(ctx, g); err != nil {
		return nil, false, err
	}

	action := audit.EventGrantCreated
	if reactivated {
		action = audit.EventGrantReactivated
	}
	if err := s.emit(ctx, audit.Event{
		Action:         string(action),
		CitizenID:      citizenID,
		OrganizationID: orgID,
		DataCategory:   dataType,
		Subject:        g.ID.String(),
		ActorID:        actorID(actor),
	}); err != nil {
		return nil, false, err
	}
	return g, reactivated, nil
}

// Revoke sets the grant to revoked. The owning citizen or the holding
// organization may revoke; revoking a revoked grant is a no-op.
func (s *Service) Revoke(ctx context.Context, actor domain.Principal, grantID domain.GrantID) (grant *models.AccessGrant, err error) {
	ctx, span := s.startSpan(ctx, "Revoke")
	defer func() { endSpan(span, err) }()

	current, err := s.store.FindGrant(ctx, grantID)
	if err != nil {
		return nil, wrapStoreErr(err, "grant")
	}
	if !actor.IsCitizen(current.CitizenID) && !actor.IsOrganization(current.OrganizationID) {
		return nil, unauthorized("only the citizen or the holding organization may revoke this grant")
	}

	var changed bool
	err = s.runInTx(ctx, "revoke", current.CitizenID, func(ctx context.Context, store Store) error {
		g, err := store.FindGrant(ctx, grantID)
		if err != nil {
			return wrapStoreErr(err, "grant")
		}
		grant = g
		if !g.Revoke(requestcontext.Now(ctx)) {
			return nil
		}
		changed = true
		if err := store.SaveGrant(ctx, g); err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:         string(audit.EventGrantRevoked),
			CitizenID:      g.CitizenID,
			OrganizationID: g.OrganizationID,
			DataCategory:   g.DataType,
			Subject:        g.ID.String(),
			ActorID:        actorID(actor),
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		reason := "citizen"
		if actor.Role == domain.RoleOrganization {
			reason = "organization"
		}
		s.metrics.IncrementGrantRevoked(reason)
	}
	return grant, nil
}

// Modify changes the purpose of an active grant. Only the owning citizen may modify.
func (s *Service) Modify(ctx context.Context, actor domain.Principal, grantID domain.GrantID, purpose *string) (grant *models.AccessGrant, err error) {
	ctx, span := s.startSpan(ctx, "Modify")
	defer func() { endSpan(span, err) }()

	if purpose != nil && strings.TrimSpace(*purpose) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose cannot be empty")
	}
	current, err := s.store.FindGrant(ctx, grantID)
	if err != nil {
		return nil, wrapStoreErr(err, "grant")
	}
	if err := requireCitizen(actor, current.CitizenID); err != nil {
		return nil, err
	}

	err = s.runInTx(ctx, "modify", current.CitizenID, func(ctx context.Context, store Store) error {
		g, err := store.FindGrant(ctx, grantID)
		if err != nil {
			return wrapStoreErr(err, "grant")
		}
		if err := g.CanModify(); err != nil {
			return err
		}
		grant = g
		if purpose == nil {
			return nil
		}
		g.Purpose = strings.TrimSpace(*purpose)
		if err := store.SaveGrant(ctx, g); err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:         string(audit.EventGrantModified),
			CitizenID:      g.CitizenID,
			OrganizationID: g.OrganizationID,
			DataCategory:   g.DataType,
			Subject:        g.ID.String(),
			ActorID:        actorID(actor),
		})
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// ListByCitizen returns the citizen's grants, newest first, filtered.
func (s *Service) ListByCitizen(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID, filter models.GrantFilter) (grants []*models.AccessGrant, err error) {
	ctx, span := s.startSpan(ctx, "ListByCitizen")
	defer func() { endSpan(span, err) }()

	if err := requireCitizenOrOversight(actor, citizenID); err != nil {
		return nil, err
	}
	all, err := s.store.ListGrantsByCitizen(ctx, citizenID)
	if err != nil {
		return nil, wrapStoreErr(err, "grants")
	}
	return s.filterGrants(ctx, all, filter)
}

// ListByOrganization returns the organization's grants, newest first, filtered.
func (s *Service) ListByOrganization(ctx context.Context, actor domain.Principal, orgID domain.OrganizationID, filter models.GrantFilter) (grants []*models.AccessGrant, err error) {
	ctx, span := s.startSpan(ctx, "ListByOrganization")
	defer func() { endSpan(span, err) }()

	if err := requireOrganizationOrOversight(actor, orgID); err != nil {
		return nil, err
	}
	all, err := s.store.ListGrantsByOrganization(ctx, orgID)
	if err != nil {
		return nil, wrapStoreErr(err, "grants")
	}
	return s.filterGrants(ctx, all, filter)
}

func (s *Service) filterGrants(ctx context.Context, all []*models.AccessGrant, filter models.GrantFilter) ([]*models.AccessGrant, error) {
	ids := make([]domain.OrganizationID, 0, len(all))
	for _, g := range all {
		if !slices.Contains(ids, g.OrganizationID) {
			ids = append(ids, g.OrganizationID)
		}
	}
	orgs, err := s.orgs.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*models.AccessGrant, 0, len(all))
	for _, g := range all {
		if org, ok := orgs[g.OrganizationID]; ok {
			g.OrganizationName = org.Name
		}
		if filter.Matches(g) {
			out = append(out, g)
		}
	}
	slices.SortStableFunc(out, func(a, b *models.AccessGrant) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// ActiveGrantIDs returns the live grants backing an access by orgID to
// citizenID. An empty dataType matches any category.
func (s *Service) ActiveGrantIDs(ctx context.Context, citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory) ([]domain.GrantID, error) {
	grants, err := s.store.ListGrantsByCitizen(ctx, citizenID)
	if err != nil {
		return nil, wrapStoreErr(err, "grants")
	}
	var ids []domain.GrantID
	for _, g := range grants {
		if g.OrganizationID != orgID || !g.IsActive() {
			continue
		}
		if dataType != "" && g.DataType != dataType {
			continue
		}
		ids = append(ids, g.ID)
	}
	return ids, nil
}

// TouchGrants advances lastAccessedAt. It bypasses the citizen scope since
// the timestamp only moves forward and never affects grant status.
func (s *Service) TouchGrants(ctx context.Context, ids []domain.GrantID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.TouchGrants(ctx, ids, at); err != nil {
		return wrapStoreErr(err, "grants")
	}
	return nil
}
