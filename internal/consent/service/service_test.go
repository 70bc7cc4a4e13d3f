package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"truconn/internal/consent/models"
	"truconn/internal/consent/service"
	"truconn/internal/consent/store/memory"
	orgmodels "truconn/internal/organization/models"
	orgservice "truconn/internal/organization/service"
	orgstore "truconn/internal/organization/store"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	auditmemory "truconn/pkg/platform/audit/store/memory"
)

type recordingPublisher struct {
	store *auditmemory.InMemoryStore
	fail  func(audit.Event) bool
}

func (p *recordingPublisher) Emit(ctx context.Context, event audit.Event) error {
	if p.fail != nil && p.fail(event) {
		return errors.New("sink unavailable")
	}
	return p.store.Append(ctx, event)
}

type ConsentServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *memory.Store
	orgs      *orgservice.Service
	publisher *recordingPublisher
	service   *service.Service

	citizen   domain.CitizenID
	asCitizen domain.Principal
	orgX      *orgmodels.Organization
	orgY      *orgmodels.Organization
}

func TestConsentServiceSuite(t *testing.T) {
	suite.Run(t, new(ConsentServiceSuite))
}

func (s *ConsentServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.orgs = orgservice.New(orgstore.NewInMemory())
	s.publisher = &recordingPublisher{store: auditmemory.NewInMemoryStore()}
	s.service = service.New(s.store, service.NewShardedTx(s.store, time.Second), s.orgs,
		service.WithAuditPublisher(s.publisher))

	var err error
	s.orgX, err = s.orgs.Register(s.ctx, "Org X", "finance", orgmodels.StatusVerified)
	s.Require().NoError(err)
	s.orgY, err = s.orgs.Register(s.ctx, "Org Y", "health", orgmodels.StatusVerified)
	s.Require().NoError(err)

	s.citizen = domain.NewCitizenID()
	s.asCitizen = domain.Principal{ID: uuid.UUID(s.citizen), Role: domain.RoleCitizen}
	_, err = s.service.Onboard(s.ctx, s.asCitizen, s.citizen, nil)
	s.Require().NoError(err)
}

func (s *ConsentServiceSuite) asOrg(org *orgmodels.Organization) domain.Principal {
	return domain.Principal{ID: uuid.UUID(org.ID), Role: domain.RoleOrganization}
}

func (s *ConsentServiceSuite) allow(category domain.DataCategory, orgs ...domain.OrganizationID) *models.Consent {
	c, err := s.service.SetConsent(s.ctx, s.asCitizen, s.citizen, category, models.ConsentUpdate{
		Allowed:       true,
		Organizations: &orgs,
	})
	s.Require().NoError(err)
	return c
}

func (s *ConsentServiceSuite) actions() []string {
	events, err := s.publisher.store.ListByCitizen(s.ctx, s.citizen)
	s.Require().NoError(err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

func (s *ConsentServiceSuite) TestOnboard() {
	s.Run("creates one denied consent per category", func() {
		consents, err := s.service.GetConsents(s.ctx, s.asCitizen, s.citizen)
		s.Require().NoError(err)
		s.Len(consents, len(domain.AllCategories()))
		for _, c := range consents {
			s.False(c.Allowed)
			s.Empty(c.Organizations)
		}
	})

	s.Run("second onboarding conflicts", func() {
		_, err := s.service.Onboard(s.ctx, s.asCitizen, s.citizen, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("applies category choices", func() {
		other := domain.NewCitizenID()
		actor := domain.Principal{ID: uuid.UUID(other), Role: domain.RoleCitizen}
		consents, err := s.service.Onboard(s.ctx, actor, other, []service.CategoryChoice{
			{Category: domain.CategoryContact, Allowed: true, Duration: "1 year"},
		})
		s.Require().NoError(err)
		for _, c := range consents {
			s.Equal(c.Category == domain.CategoryContact, c.Allowed)
		}
	})

	s.Run("rejects unknown category", func() {
		other := domain.NewCitizenID()
		actor := domain.Principal{ID: uuid.UUID(other), Role: domain.RoleCitizen}
		_, err := s.service.Onboard(s.ctx, actor, other, []service.CategoryChoice{{Category: "Genome"}})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCategory))
	})
}

// Approving a request against a denied consent allows it for the requester
// and creates exactly one active grant.
func (s *ConsentServiceSuite) TestApproveRequestAllowsConsentAndGrants() {
	req, err := s.service.CreateRequest(s.ctx, s.asOrg(s.orgX), s.orgX.ID, s.citizen, domain.CategoryIdentity, "KYC check")
	s.Require().NoError(err)
	s.Equal(models.RequestStatusPending, req.Status)
	s.Equal("Org X", req.OrganizationName)

	approval, err := s.service.Approve(s.ctx, s.asCitizen, req.ID)
	s.Require().NoError(err)
	s.Equal(models.RequestStatusApproved, approval.Request.Status)
	s.True(approval.Consent.Allowed)
	s.Equal([]domain.OrganizationID{s.orgX.ID}, approval.Consent.Organizations)
	s.True(approval.Grant.IsActive())
	s.Equal("KYC check", approval.Grant.Purpose)

	grants, err := s.service.ListByCitizen(s.ctx, s.asCitizen, s.citizen, models.GrantFilter{})
	s.Require().NoError(err)
	s.Len(grants, 1)

	s.Run("decided request cannot be decided again", func() {
		_, err := s.service.Approve(s.ctx, s.asCitizen, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		_, err = s.service.Reject(s.ctx, s.asCitizen, req.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	// Denying the category afterwards revokes the grant.
	s.Run("denial cascades to the grant", func() {
		c, err := s.service.SetConsent(s.ctx, s.asCitizen, s.citizen, domain.CategoryIdentity, models.ConsentUpdate{Allowed: false})
		s.Require().NoError(err)
		s.False(c.Allowed)
		s.Empty(c.Organizations)

		g, err := s.store.FindGrant(s.ctx, approval.Grant.ID)
		s.Require().NoError(err)
		s.Equal(models.GrantStatusRevoked, g.Status)
		s.NotNil(g.RevokedAt)
		s.Contains(s.actions(), string(audit.EventGrantCascadeRevoked))
	})
}

func (s *ConsentServiceSuite) TestApproveKeepsExistingOrganizations() {
	s.allow(domain.CategoryHealth, s.orgY.ID)
	req, err := s.service.CreateRequest(s.ctx, s.asOrg(s.orgX), s.orgX.ID, s.citizen, domain.CategoryHealth, "claims")
	s.Require().NoError(err)

	approval, err := s.service.Approve(s.ctx, s.asCitizen, req.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]domain.OrganizationID{s.orgX.ID, s.orgY.ID}, approval.Consent.Organizations)
}

func (s *ConsentServiceSuite) TestRejectChangesNothingElse() {
	req, err := s.service.CreateRequest(s.ctx, s.asOrg(s.orgX), s.orgX.ID, s.citizen, domain.CategoryFinancial, "loan")
	s.Require().NoError(err)

	rejected, err := s.service.Reject(s.ctx, s.asCitizen, req.ID)
	s.Require().NoError(err)
	s.Equal(models.RequestStatusRevoked, rejected.Status)

	c, err := s.store.FindConsent(s.ctx, s.citizen, domain.CategoryFinancial)
	s.Require().NoError(err)
	s.False(c.Allowed)
	grants, err := s.store.ListGrantsByCitizen(s.ctx, s.citizen)
	s.Require().NoError(err)
	s.Empty(grants)
}

func (s *ConsentServiceSuite) TestNoActiveGrantWithoutCoveringConsent() {
	s.allow(domain.CategoryFinancial, s.orgX.ID, s.orgY.ID)
	gx, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgX.ID, domain.CategoryFinancial, "credit scoring")
	s.Require().NoError(err)
	gy, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgY.ID, domain.CategoryFinancial, "payroll")
	s.Require().NoError(err)

	s.Run("removing an organization revokes only its grant", func() {
		s.allow(domain.CategoryFinancial, s.orgY.ID)
		x, err := s.store.FindGrant(s.ctx, gx.ID)
		s.Require().NoError(err)
		s.False(x.IsActive())
		y, err := s.store.FindGrant(s.ctx, gy.ID)
		s.Require().NoError(err)
		s.True(y.IsActive())
	})

	s.Run("grant without coverage is invalid state", func() {
		_, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgX.ID, domain.CategoryFinancial, "credit scoring")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("re-adding coverage and granting reactivates the same grant", func() {
		s.allow(domain.CategoryFinancial, s.orgX.ID, s.orgY.ID)
		again, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgX.ID, domain.CategoryFinancial, "mortgage")
		s.Require().NoError(err)
		s.Equal(gx.ID, again.ID)
		s.True(again.IsActive())
		s.Equal("mortgage", again.Purpose)
	})

	grants, err := s.store.ListGrantsByCitizen(s.ctx, s.citizen)
	s.Require().NoError(err)
	for _, g := range grants {
		if !g.IsActive() {
			continue
		}
		c, err := s.store.FindConsent(s.ctx, s.citizen, g.DataType)
		s.Require().NoError(err)
		s.True(c.Covers(g.OrganizationID), "active grant %s has no covering consent", g.ID)
	}
}

func (s *ConsentServiceSuite) TestCascadeLeavesRevokedGrantsAlone() {
	s.allow(domain.CategoryContact, s.orgX.ID, s.orgY.ID)
	gx, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgX.ID, domain.CategoryContact, "newsletter")
	s.Require().NoError(err)
	_, err = s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgY.ID, domain.CategoryContact, "billing")
	s.Require().NoError(err)

	revoked, err := s.service.Revoke(s.ctx, s.asCitizen, gx.ID)
	s.Require().NoError(err)
	revokedAt := *revoked.RevokedAt

	n, err := s.service.CascadeRevokeForConsentDenial(s.ctx, s.citizen, domain.CategoryContact)
	s.Require().NoError(err)
	s.Equal(1, n)

	x, err := s.store.FindGrant(s.ctx, gx.ID)
	s.Require().NoError(err)
	s.True(x.RevokedAt.Equal(revokedAt))

	n, err = s.service.CascadeRevokeForConsentDenial(s.ctx, s.citizen, domain.CategoryContact)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ConsentServiceSuite) TestRevokeAndModify() {
	s.allow(domain.CategoryHealth, s.orgY.ID)
	g, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgY.ID, domain.CategoryHealth, "treatment")
	s.Require().NoError(err)

	s.Run("modify changes purpose of an active grant", func() {
		purpose := "follow-up care"
		modified, err := s.service.Modify(s.ctx, s.asCitizen, g.ID, &purpose)
		s.Require().NoError(err)
		s.Equal(purpose, modified.Purpose)
	})

	s.Run("organization cannot modify", func() {
		purpose := "marketing"
		_, err := s.service.Modify(s.ctx, s.asOrg(s.orgY), g.ID, &purpose)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("other organization cannot revoke", func() {
		_, err := s.service.Revoke(s.ctx, s.asOrg(s.orgX), g.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("holding organization may revoke", func() {
		revoked, err := s.service.Revoke(s.ctx, s.asOrg(s.orgY), g.ID)
		s.Require().NoError(err)
		s.Equal(models.GrantStatusRevoked, revoked.Status)
	})

	s.Run("revoking twice is a no-op", func() {
		before := len(s.actions())
		revoked, err := s.service.Revoke(s.ctx, s.asCitizen, g.ID)
		s.Require().NoError(err)
		s.Equal(models.GrantStatusRevoked, revoked.Status)
		s.Len(s.actions(), before)
	})

	s.Run("modifying a revoked grant is invalid state", func() {
		purpose := "anything"
		_, err := s.service.Modify(s.ctx, s.asCitizen, g.ID, &purpose)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown grant is not found", func() {
		_, err := s.service.Revoke(s.ctx, s.asCitizen, domain.NewGrantID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ConsentServiceSuite) TestAuthorization() {
	stranger := domain.Principal{ID: uuid.New(), Role: domain.RoleCitizen}

	_, err := s.service.SetConsent(s.ctx, stranger, s.citizen, domain.CategoryHealth, models.ConsentUpdate{Allowed: true})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.GetConsents(s.ctx, stranger, s.citizen)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	oversight := domain.Principal{ID: uuid.New(), Role: domain.RoleOversight}
	_, err = s.service.GetConsents(s.ctx, oversight, s.citizen)
	s.NoError(err)

	_, err = s.service.CreateRequest(s.ctx, s.asOrg(s.orgX), s.orgY.ID, s.citizen, domain.CategoryHealth, "impersonation")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.ListByOrganization(s.ctx, s.asOrg(s.orgX), s.orgY.ID, models.GrantFilter{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ConsentServiceSuite) TestUnknownCitizenIsNotFound() {
	ghost := domain.NewCitizenID()
	actor := domain.Principal{ID: uuid.UUID(ghost), Role: domain.RoleCitizen}

	_, err := s.service.SetConsent(s.ctx, actor, ghost, domain.CategoryHealth, models.ConsentUpdate{Allowed: true})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.CreateRequest(s.ctx, s.asOrg(s.orgX), s.orgX.ID, ghost, domain.CategoryHealth, "lookup")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ConsentServiceSuite) TestRevokedOrganizationCannotBeGranted() {
	_, err := s.orgs.SetStatus(s.ctx, s.orgY.ID, orgmodels.StatusRevoked)
	s.Require().NoError(err)

	orgs := []domain.OrganizationID{s.orgY.ID}
	_, err = s.service.SetConsent(s.ctx, s.asCitizen, s.citizen, domain.CategoryHealth, models.ConsentUpdate{Allowed: true, Organizations: &orgs})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.service.CreateRequest(s.ctx, s.asOrg(s.orgY), s.orgY.ID, s.citizen, domain.CategoryHealth, "claims")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ConsentServiceSuite) TestClarifications() {
	req, err := s.service.CreateRequest(s.ctx, s.asOrg(s.orgX), s.orgX.ID, s.citizen, domain.CategoryBiometric, "door access")
	s.Require().NoError(err)

	_, err = s.service.AddClarification(s.ctx, s.asCitizen, req.ID, "which doors?")
	s.Require().NoError(err)
	updated, err := s.service.AddClarification(s.ctx, s.asOrg(s.orgX), req.ID, "main entrance only")
	s.Require().NoError(err)
	s.Equal(models.RequestStatusPending, updated.Status)
	s.Require().Len(updated.Clarifications, 2)
	s.Equal(domain.RoleOrganization, updated.Clarifications[1].AuthorRole)

	_, err = s.service.AddClarification(s.ctx, s.asOrg(s.orgY), req.ID, "me too")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.Reject(s.ctx, s.asCitizen, req.ID)
	s.Require().NoError(err)
	_, err = s.service.AddClarification(s.ctx, s.asCitizen, req.ID, "too late")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ConsentServiceSuite) TestListGrantsFilter() {
	s.allow(domain.CategoryHealth, s.orgX.ID, s.orgY.ID)
	_, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgX.ID, domain.CategoryHealth, "insurance")
	s.Require().NoError(err)
	gy, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgY.ID, domain.CategoryHealth, "treatment")
	s.Require().NoError(err)
	_, err = s.service.Revoke(s.ctx, s.asCitizen, gy.ID)
	s.Require().NoError(err)

	byName, err := s.service.ListByCitizen(s.ctx, s.asCitizen, s.citizen, models.GrantFilter{Text: "org y"})
	s.Require().NoError(err)
	s.Require().Len(byName, 1)
	s.Equal("Org Y", byName[0].OrganizationName)

	both, err := s.service.ListByCitizen(s.ctx, s.asCitizen, s.citizen, models.GrantFilter{Text: "org y", Status: models.GrantStatusActive})
	s.Require().NoError(err)
	s.Empty(both)
}

func (s *ConsentServiceSuite) TestEmitFailureRollsBack() {
	s.publisher.fail = func(e audit.Event) bool { return e.Action == string(audit.EventConsentGranted) }
	orgs := []domain.OrganizationID{s.orgX.ID}
	_, err := s.service.SetConsent(s.ctx, s.asCitizen, s.citizen, domain.CategoryHealth, models.ConsentUpdate{Allowed: true, Organizations: &orgs})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	c, err := s.store.FindConsent(s.ctx, s.citizen, domain.CategoryHealth)
	s.Require().NoError(err)
	s.False(c.Allowed)
}

func (s *ConsentServiceSuite) TestCascadeEmitFailureRollsBackDenial() {
	s.allow(domain.CategoryHealth, s.orgX.ID)
	g, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgX.ID, domain.CategoryHealth, "insurance")
	s.Require().NoError(err)

	s.publisher.fail = func(e audit.Event) bool { return e.Action == string(audit.EventGrantCascadeRevoked) }
	_, err = s.service.SetConsent(s.ctx, s.asCitizen, s.citizen, domain.CategoryHealth, models.ConsentUpdate{Allowed: false})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	c, err := s.store.FindConsent(s.ctx, s.citizen, domain.CategoryHealth)
	s.Require().NoError(err)
	s.True(c.Allowed)
	s.True(c.Covers(s.orgX.ID))

	found, err := s.store.FindGrant(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Equal(models.GrantStatusActive, found.Status)
	s.NotContains(s.actions(), string(audit.EventConsentDenied))
}

func (s *ConsentServiceSuite) TestConcurrentUpdatesKeepInvariant() {
	s.allow(domain.CategoryFinancial, s.orgX.ID)
	_, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgX.ID, domain.CategoryFinancial, "loan")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = s.service.SetConsent(s.ctx, s.asCitizen, s.citizen, domain.CategoryFinancial, models.ConsentUpdate{Allowed: false})
				return
			}
			orgs := []domain.OrganizationID{s.orgX.ID}
			if _, err := s.service.SetConsent(s.ctx, s.asCitizen, s.citizen, domain.CategoryFinancial, models.ConsentUpdate{Allowed: true, Organizations: &orgs}); err == nil {
				_, _ = s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgX.ID, domain.CategoryFinancial, "loan")
			}
		}()
	}
	wg.Wait()

	c, err := s.store.FindConsent(s.ctx, s.citizen, domain.CategoryFinancial)
	s.Require().NoError(err)
	g, err := s.store.FindGrantByTriple(s.ctx, s.citizen, s.orgX.ID, domain.CategoryFinancial)
	s.Require().NoError(err)
	if g.IsActive() {
		s.True(c.Covers(s.orgX.ID))
	}
}

func (s *ConsentServiceSuite) TestCancelledContextTimesOut() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.service.SetConsent(ctx, s.asCitizen, s.citizen, domain.CategoryHealth, models.ConsentUpdate{Allowed: false})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *ConsentServiceSuite) TestActiveGrantIDsAndTouch() {
	s.allow(domain.CategoryHealth, s.orgX.ID)
	g, err := s.service.Grant(s.ctx, s.asCitizen, s.citizen, s.orgX.ID, domain.CategoryHealth, "insurance")
	s.Require().NoError(err)

	ids, err := s.service.ActiveGrantIDs(s.ctx, s.citizen, s.orgX.ID, "")
	s.Require().NoError(err)
	s.Equal([]domain.GrantID{g.ID}, ids)

	ids, err = s.service.ActiveGrantIDs(s.ctx, s.citizen, s.orgX.ID, domain.CategoryFinancial)
	s.Require().NoError(err)
	s.Empty(ids)

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.service.TouchGrants(s.ctx, []domain.GrantID{g.ID}, at))
	found, err := s.store.FindGrant(s.ctx, g.ID)
	s.Require().NoError(err)
	s.True(found.LastAccessedAt.Equal(at))
}
