package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"truconn/internal/consent/models"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	"truconn/pkg/platform/sentinel"
	"truconn/pkg/requestcontext"
)

// CategoryChoice is one onboarding answer.
type CategoryChoice struct {
	Category domain.DataCategory
	Allowed  bool
	Duration string
}

// runInTx wraps StoreTx with latency and conflict accounting.
func (s *Service) runInTx(ctx context.Context, op string, citizenID domain.CitizenID, fn func(ctx context.Context, store Store) error) error {
	start := time.Now()
	defer s.metrics.ObserveOperation(op, start)

	err := s.tx.RunInTx(ctx, citizenID, fn)
	if err != nil {
		err = wrapStoreErr(err, "record")
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncrementTxConflict()
			s.logger.WarnContext(ctx, "citizen scope busy",
				"operation", op,
				"citizen_id", citizenID,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return err
}

// Onboard creates the citizen's registry with one consent row per category.
// Categories without a choice start denied.
func (s *Service) Onboard(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID, choices []CategoryChoice) (consents []*models.Consent, err error) {
	ctx, span := s.startSpan(ctx, "Onboard")
	defer func() { endSpan(span, err) }()

	if err := requireCitizen(actor, citizenID); err != nil {
		return nil, err
	}
	byCategory := make(map[domain.DataCategory]CategoryChoice, len(choices))
	for _, c := range choices {
		if err := requireCategory(c.Category); err != nil {
			return nil, err
		}
		byCategory[c.Category] = c
	}

	now := requestcontext.Now(ctx)
	err = s.runInTx(ctx, "onboard", citizenID, func(ctx context.Context, store Store) error {
		if err := store.CreateCitizen(ctx, &models.Citizen{ID: citizenID, OnboardedAt: now}); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "citizen is already onboarded")
			}
			return err
		}
		consents = consents[:0]
		for _, category := range domain.AllCategories() {
			c := models.NewDeniedConsent(citizenID, category, now)
			if choice, ok := byCategory[category]; ok {
				c.Allowed = choice.Allowed
				c.Duration = choice.Duration
			}
			if err := store.SaveConsent(ctx, c); err != nil {
				return err
			}
			consents = append(consents, c)
		}
		return s.emit(ctx, audit.Event{
			Action:    string(audit.EventCitizenOnboarded),
			CitizenID: citizenID,
			ActorID:   actorID(actor),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "citizen onboarded",
		"citizen_id", citizenID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return consents, nil
}

// SetConsent updates one category. Denial clears every organization; every
// organization that loses coverage has its grant revoked in the same unit.
func (s *Service) SetConsent(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID, category domain.DataCategory, update models.ConsentUpdate) (consent *models.Consent, err error) {
	ctx, span := s.startSpan(ctx, "SetConsent")
	defer func() { endSpan(span, err) }()

	if err := requireCategory(category); err != nil {
		return nil, err
	}
	if err := requireCitizen(actor, citizenID); err != nil {
		return nil, err
	}
	if update.Allowed && update.Organizations != nil {
		for _, orgID := range models.NormalizeOrganizations(*update.Organizations) {
			if _, err := s.requireGrantableOrganization(ctx, orgID); err != nil {
				return nil, err
			}
		}
	}

	var cascaded int
	err = s.runInTx(ctx, "set_consent", citizenID, func(ctx context.Context, store Store) error {
		c, n, err := s.setConsentInTx(ctx, store, actor, citizenID, category, update)
		if err != nil {
			return err
		}
		consent, cascaded = c, n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementConsentUpdate(string(category), consent.Allowed)
	s.metrics.AddCascadeRevocations(cascaded)
	s.logger.InfoContext(ctx, "consent updated",
		"citizen_id", citizenID,
		"category", category,
		"allowed", consent.Allowed,
		"cascade_revoked", cascaded,
		"request_id", requestcontext.RequestID(ctx),
	)
	return consent, nil
}

// setConsentInTx is shared by SetConsent and request approval.
func (s *Service) setConsentInTx(ctx context.Context, store Store, actor domain.Principal, citizenID domain.CitizenID, category domain.DataCategory, update models.ConsentUpdate) (*models.Consent, int, error) {
	if err := requireCitizenExists(ctx, store, citizenID); err != nil {
		return nil, 0, err
	}
	now := requestcontext.Now(ctx)

	c, err := store.FindConsent(ctx, citizenID, category)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		c = models.NewDeniedConsent(citizenID, category, now)
	case err != nil:
		return nil, 0, err
	}

	before := slices.Clone(c.Organizations)
	removed := c.Apply(update, now)
	if err := store.SaveConsent(ctx, c); err != nil {
		return nil, 0, err
	}

	cascaded := 0
	if c.Allowed {
		n, err := s.revokeGrantsFor(ctx, store, citizenID, category, removed, now)
		if err != nil {
			return nil, 0, err
		}
		cascaded = n
	} else {
		n, err := s.cascadeRevokeInTx(ctx, store, citizenID, category, now)
		if err != nil {
			return nil, 0, err
		}
		cascaded = n
	}

	action := audit.EventConsentGranted
	if !c.Allowed {
		action = audit.EventConsentDenied
	} else if len(removed) > 0 || !slices.Equal(before, c.Organizations) {
		action = audit.EventConsentScopeChanged
	}
	if err := s.emit(ctx, audit.Event{
		Action:       string(action),
		CitizenID:    citizenID,
		DataCategory: category,
		Subject:      c.ID.String(),
		ActorID:      actorID(actor),
	}); err != nil {
		return nil, 0, err
	}
	return c, cascaded, nil
}

// revokeGrantsFor revokes the active grants of the organizations that lost coverage.
func (s *Service) revokeGrantsFor(ctx context.Context, store Store, citizenID domain.CitizenID, category domain.DataCategory, orgs []domain.OrganizationID, now time.Time) (int, error) {
	revoked := 0
	for _, orgID := range orgs {
		g, err := store.FindGrantByTriple(ctx, citizenID, orgID, category)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return revoked, err
		}
		if !g.Revoke(now) {
			continue
		}
		if err := store.SaveGrant(ctx, g); err != nil {
			return revoked, err
		}
		if err := s.emitCascade(ctx, g); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

// CascadeRevokeForConsentDenial revokes every active grant for (citizen,
// dataType). Grants already revoked are left as they are.
func (s *Service) CascadeRevokeForConsentDenial(ctx context.Context, citizenID domain.CitizenID, dataType domain.DataCategory) (revoked int, err error) {
	ctx, span := s.startSpan(ctx, "CascadeRevokeForConsentDenial")
	defer func() { endSpan(span, err) }()

	if err := requireCategory(dataType); err != nil {
		return 0, err
	}
	err = s.runInTx(ctx, "cascade_revoke", citizenID, func(ctx context.Context, store Store) error {
		n, err := s.cascadeRevokeInTx(ctx, store, citizenID, dataType, requestcontext.Now(ctx))
		revoked = n
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.AddCascadeRevocations(revoked)
	return revoked, nil
}

func (s *Service) cascadeRevokeInTx(ctx context.Context, store Store, citizenID domain.CitizenID, dataType domain.DataCategory, now time.Time) (int, error) {
	grants, err := store.ListGrantsByCitizen(ctx, citizenID)
	if err != nil {
		return 0, err
	}
	revoked := 0
	for _, g := range grants {
		if g.DataType != dataType || !g.Revoke(now) {
			continue
		}
		if err := store.SaveGrant(ctx, g); err != nil {
			return revoked, err
		}
		if err := s.emitCascade(ctx, g); err != nil {
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}

func (s *Service) emitCascade(ctx context.Context, g *models.AccessGrant) error {
	s.metrics.IncrementGrantRevoked("cascade")
	return s.emit(ctx, audit.Event{
		Action:         string(audit.EventGrantCascadeRevoked),
		CitizenID:      g.CitizenID,
		OrganizationID: g.OrganizationID,
		DataCategory:   g.DataType,
		Subject:        g.ID.String(),
		Reason:         "consent no longer covers organization",
	})
}

// GetConsents returns the citizen's consents ordered by category.
func (s *Service) GetConsents(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID) (consents []*models.Consent, err error) {
	ctx, span := s.startSpan(ctx, "GetConsents")
	defer func() { endSpan(span, err) }()

	if err := requireCitizenOrOversight(actor, citizenID); err != nil {
		return nil, err
	}
	if err := requireCitizenExists(ctx, s.store, citizenID); err != nil {
		return nil, err
	}
	consents, err = s.store.ListConsents(ctx, citizenID)
	if err != nil {
		return nil, wrapStoreErr(err, "consents")
	}
	slices.SortFunc(consents, func(a, b *models.Consent) int {
		switch {
		case a.Category < b.Category:
			return -1
		case a.Category > b.Category:
			return 1
		default:
			return 0
		}
	})
	return consents, nil
}
