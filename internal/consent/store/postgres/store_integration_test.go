//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"truconn/internal/consent/models"
	"truconn/internal/consent/service"
	orgmodels "truconn/internal/organization/models"
	orgstore "truconn/internal/organization/store"
	"truconn/pkg/domain"
	"truconn/pkg/platform/sentinel"
	"truconn/pkg/testutil/containers"
)

type PostgresConsentStoreSuite struct {
	suite.Suite
	pg      *containers.PostgresContainer
	store   *Store
	tx      *Tx
	ctx     context.Context
	citizen domain.CitizenID
	org     domain.OrganizationID
	now     time.Time
}

func TestPostgresConsentStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresConsentStoreSuite))
}

func (s *PostgresConsentStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = New(s.pg.Pool)
	s.tx = NewTx(s.pg.Pool, s.store, time.Second)
	s.ctx = context.Background()
}

func (s *PostgresConsentStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx))
	s.now = time.Now().UTC().Truncate(time.Microsecond)

	org, err := orgmodels.NewOrganization(domain.NewOrganizationID(), "Clinic One", "health", orgmodels.StatusVerified, s.now)
	s.Require().NoError(err)
	s.Require().NoError(orgstore.NewPostgres(s.pg.Pool).CreateIfNameAvailable(s.ctx, org))
	s.org = org.ID

	s.citizen = domain.NewCitizenID()
	s.Require().NoError(s.store.CreateCitizen(s.ctx, &models.Citizen{ID: s.citizen, OnboardedAt: s.now}))
}

func (s *PostgresConsentStoreSuite) TestConsentRoundTrip() {
	c := models.NewDeniedConsent(s.citizen, domain.CategoryHealth, s.now)
	s.Require().NoError(s.store.SaveConsent(s.ctx, c))

	c.Allowed = true
	c.Organizations = []domain.OrganizationID{s.org}
	c.Duration = "6 months"
	s.Require().NoError(s.store.SaveConsent(s.ctx, c))

	found, err := s.store.FindConsent(s.ctx, s.citizen, domain.CategoryHealth)
	s.Require().NoError(err)
	s.True(found.Allowed)
	s.Equal([]domain.OrganizationID{s.org}, found.Organizations)

	covering, err := s.store.ListConsentsCovering(s.ctx, s.org)
	s.Require().NoError(err)
	s.Len(covering, 1)
}

func (s *PostgresConsentStoreSuite) TestDeniedConsentCannotListOrganizations() {
	c := models.NewDeniedConsent(s.citizen, domain.CategoryFinancial, s.now)
	c.Organizations = []domain.OrganizationID{s.org}
	s.Error(s.store.SaveConsent(s.ctx, c))
}

func (s *PostgresConsentStoreSuite) TestGrantTripleIsUnique() {
	g := models.NewAccessGrant(s.citizen, s.org, domain.CategoryHealth, "treatment", s.now)
	s.Require().NoError(s.store.SaveGrant(s.ctx, g))

	dup := models.NewAccessGrant(s.citizen, s.org, domain.CategoryHealth, "other", s.now)
	s.ErrorIs(s.store.SaveGrant(s.ctx, dup), sentinel.ErrConflict)
}

func (s *PostgresConsentStoreSuite) TestSaveGrantKeepsLaterAccessTime() {
	g := models.NewAccessGrant(s.citizen, s.org, domain.CategoryHealth, "treatment", s.now)
	s.Require().NoError(s.store.SaveGrant(s.ctx, g))

	later := s.now.Add(time.Hour)
	s.Require().NoError(s.store.TouchGrants(s.ctx, []domain.GrantID{g.ID}, later))

	g.Purpose = "follow-up"
	s.Require().NoError(s.store.SaveGrant(s.ctx, g))

	found, err := s.store.FindGrant(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Equal("follow-up", found.Purpose)
	s.Require().NotNil(found.LastAccessedAt)
	s.True(found.LastAccessedAt.Equal(later))
}

func (s *PostgresConsentStoreSuite) TestRequestClarificationsAppend() {
	req, err := models.NewConsentRequest(s.citizen, s.org, domain.CategoryHealth, "insurance claim", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveRequest(s.ctx, req))

	req.Clarifications = append(req.Clarifications,
		models.Clarification{AuthorRole: domain.RoleCitizen, AuthorID: s.citizen.String(), Message: "which claim?", CreatedAt: s.now},
		models.Clarification{AuthorRole: domain.RoleOrganization, AuthorID: s.org.String(), Message: "the March one", CreatedAt: s.now},
	)
	s.Require().NoError(s.store.SaveRequest(s.ctx, req))
	req.Approve(s.now)
	s.Require().NoError(s.store.SaveRequest(s.ctx, req))

	found, err := s.store.FindRequest(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.RequestStatusApproved, found.Status)
	s.Require().Len(found.Clarifications, 2)
	s.Equal("the March one", found.Clarifications[1].Message)
}

func (s *PostgresConsentStoreSuite) TestTxRollsBackOnError() {
	boom := errors.New("boom")
	err := s.tx.RunInTx(s.ctx, s.citizen, func(ctx context.Context, store service.Store) error {
		if err := store.SaveConsent(ctx, models.NewDeniedConsent(s.citizen, domain.CategoryContact, s.now)); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindConsent(s.ctx, s.citizen, domain.CategoryContact)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresConsentStoreSuite) TestTxSerializesCitizen() {
	var (
		mu     sync.Mutex
		inside int
		peak   int
		wg     sync.WaitGroup
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.tx.RunInTx(s.ctx, s.citizen, func(ctx context.Context, store service.Store) error {
				mu.Lock()
				inside++
				peak = max(peak, inside)
				mu.Unlock()
				time.Sleep(20 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	s.Equal(1, peak)
}
