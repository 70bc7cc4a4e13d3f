package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"truconn/internal/organization/models"
	"truconn/internal/organization/store"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	auditmemory "truconn/pkg/platform/audit/store/memory"
)

type recordingPublisher struct {
	store *auditmemory.InMemoryStore
}

func (p recordingPublisher) Emit(ctx context.Context, event audit.Event) error {
	return p.store.Append(ctx, event)
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	service *Service
	events  *auditmemory.InMemoryStore
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.events = auditmemory.NewInMemoryStore()
	s.service = New(store.NewInMemory(), WithAuditPublisher(recordingPublisher{store: s.events}))
}

func (s *ServiceSuite) TestRegister() {
	s.Run("registers and emits event", func() {
		org, err := s.service.Register(s.ctx, "Health Trust", "health", models.StatusVerified)
		s.Require().NoError(err)
		s.Equal(models.StatusVerified, org.Status)

		events, _ := s.events.ListAll(s.ctx)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventOrganizationRegistered), events[0].Action)
	})

	s.Run("duplicate name conflicts", func() {
		_, err := s.service.Register(s.ctx, "health trust", "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("empty name is a validation error", func() {
		_, err := s.service.Register(s.ctx, " ", "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestSetStatus() {
	org, err := s.service.Register(s.ctx, "Status Co", "", "")
	s.Require().NoError(err)

	updated, err := s.service.SetStatus(s.ctx, org.ID, models.StatusRevoked)
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, updated.Status)

	_, err = s.service.SetStatus(s.ctx, org.ID, models.StatusRevoked)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.service.SetStatus(s.ctx, domain.NewOrganizationID(), models.StatusVerified)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestLookup() {
	a, _ := s.service.Register(s.ctx, "A", "", "")
	found, err := s.service.Lookup(s.ctx, []domain.OrganizationID{a.ID, domain.NewOrganizationID()})
	s.Require().NoError(err)
	s.Len(found, 1)

	empty, err := s.service.Lookup(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(empty)
}
