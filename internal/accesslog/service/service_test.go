package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"truconn/internal/accesslog/models"
	"truconn/internal/accesslog/service"
	"truconn/internal/accesslog/store/memory"
	consentmodels "truconn/internal/consent/models"
	consentservice "truconn/internal/consent/service"
	consentmemory "truconn/internal/consent/store/memory"
	orgmodels "truconn/internal/organization/models"
	orgservice "truconn/internal/organization/service"
	orgstore "truconn/internal/organization/store"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	auditmemory "truconn/pkg/platform/audit/store/memory"
	"truconn/pkg/requestcontext"
)

type capturedRecord struct {
	topic string
	key   string
	value []byte
}

type capturingPublisher struct {
	mu      sync.Mutex
	records []capturedRecord
}

func (p *capturingPublisher) PublishAsync(_ context.Context, topic string, key, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, capturedRecord{topic: topic, key: string(key), value: value})
}

type eventRecorder struct {
	store *auditmemory.InMemoryStore
}

func (r *eventRecorder) Emit(ctx context.Context, event audit.Event) error {
	return r.store.Append(ctx, event)
}

type AccessLogServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *memory.Store
	consents  *consentservice.Service
	orgs      *orgservice.Service
	stream    *capturingPublisher
	events    *eventRecorder
	service   *service.Service
	citizen   domain.CitizenID
	asCitizen domain.Principal
	orgX      *orgmodels.Organization
	orgY      *orgmodels.Organization
}

func TestAccessLogServiceSuite(t *testing.T) {
	suite.Run(t, new(AccessLogServiceSuite))
}

func (s *AccessLogServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.orgs = orgservice.New(orgstore.NewInMemory())
	consentStore := consentmemory.New()
	s.consents = consentservice.New(consentStore, consentservice.NewShardedTx(consentStore, time.Second), s.orgs)

	s.store = memory.New()
	s.stream = &capturingPublisher{}
	s.events = &eventRecorder{store: auditmemory.NewInMemoryStore()}
	s.service = service.New(s.store, s.consents, s.orgs,
		service.WithPublisher(s.stream, "truconn.access-log"),
		service.WithAuditPublisher(s.events),
		service.WithPageSize(2),
	)

	var err error
	s.orgX, err = s.orgs.Register(s.ctx, "Org X", "finance", orgmodels.StatusVerified)
	s.Require().NoError(err)
	s.orgY, err = s.orgs.Register(s.ctx, "Metro Clinic", "health", orgmodels.StatusVerified)
	s.Require().NoError(err)

	s.citizen = domain.NewCitizenID()
	s.asCitizen = domain.Principal{ID: uuid.UUID(s.citizen), Role: domain.RoleCitizen}
	_, err = s.consents.Onboard(s.ctx, s.asCitizen, s.citizen, nil)
	s.Require().NoError(err)
}

func asOrg(org *orgmodels.Organization) domain.Principal {
	return domain.Principal{ID: uuid.UUID(org.ID), Role: domain.RoleOrganization}
}

var oversight = domain.Principal{ID: uuid.New(), Role: domain.RoleOversight}

func (s *AccessLogServiceSuite) grant(org *orgmodels.Organization, category domain.DataCategory) *consentmodels.AccessGrant {
	orgs := []domain.OrganizationID{org.ID}
	_, err := s.consents.SetConsent(s.ctx, s.asCitizen, s.citizen, category, consentmodels.ConsentUpdate{
		Allowed:       true,
		Organizations: &orgs,
	})
	s.Require().NoError(err)
	g, err := s.consents.Grant(s.ctx, s.asCitizen, s.citizen, org.ID, category, "statement delivery")
	s.Require().NoError(err)
	return g
}

func (s *AccessLogServiceSuite) appendAs(ctx context.Context, org *orgmodels.Organization, category domain.DataCategory, purpose string) *models.AuditEntry {
	e, err := s.service.Append(ctx, asOrg(org), service.AppendInput{
		CitizenID:  s.citizen,
		DataType:   category,
		Purpose:    purpose,
		AccessType: models.AccessRead,
	})
	s.Require().NoError(err)
	return e
}

func (s *AccessLogServiceSuite) query(actor domain.Principal, filter models.Filter) []*models.AuditEntry {
	seq, err := s.service.Query(s.ctx, actor, filter)
	s.Require().NoError(err)
	out, err := service.Collect(seq, 0)
	s.Require().NoError(err)
	return out
}

func (s *AccessLogServiceSuite) TestAppendWithoutGrantIsRecorded() {
	entry := s.appendAs(s.ctx, s.orgX, domain.CategoryHealth, "claims review")

	s.False(entry.Authorized)
	s.Equal("Org X", entry.OrganizationName)
	s.Equal(int64(1), entry.ID)

	counts, err := s.service.CountByOrganization(s.ctx, s.orgX.ID)
	s.Require().NoError(err)
	s.Equal(models.Counts{Total: 1, Unauthorized: 1}, counts)
	s.InDelta(1.0, counts.UnauthorizedRatio(), 0.0001)

	events, err := s.events.store.ListByCitizen(s.ctx, s.citizen)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventUnauthorizedAccess), events[0].Action)
	s.Equal(s.orgX.ID, events[0].OrganizationID)
}

func (s *AccessLogServiceSuite) TestAppendWithGrantTouchesIt() {
	g := s.grant(s.orgX, domain.CategoryFinancial)
	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	entry := s.appendAs(requestcontext.WithTime(s.ctx, at), s.orgX, domain.CategoryFinancial, "statement delivery")
	s.True(entry.Authorized)

	grants, err := s.consents.ListByCitizen(s.ctx, s.asCitizen, s.citizen, consentmodels.GrantFilter{})
	s.Require().NoError(err)
	s.Require().Len(grants, 1)
	s.Equal(g.ID, grants[0].ID)
	s.Require().NotNil(grants[0].LastAccessedAt)
	s.True(at.Equal(*grants[0].LastAccessedAt))

	events, err := s.events.store.ListByCitizen(s.ctx, s.citizen)
	s.Require().NoError(err)
	for _, e := range events {
		s.NotEqual(string(audit.EventUnauthorizedAccess), e.Action)
	}
}

func (s *AccessLogServiceSuite) TestGrantForAnotherCategoryDoesNotAuthorize() {
	s.grant(s.orgX, domain.CategoryFinancial)
	entry := s.appendAs(s.ctx, s.orgX, domain.CategoryHealth, "claims review")
	s.False(entry.Authorized)
}

func (s *AccessLogServiceSuite) TestAppendPublishesToStream() {
	entry := s.appendAs(s.ctx, s.orgX, domain.CategoryContact, "delivery notice")

	s.Require().Len(s.stream.records, 1)
	rec := s.stream.records[0]
	s.Equal("truconn.access-log", rec.topic)
	s.Equal(s.orgX.ID.String(), rec.key)

	var decoded models.AuditEntry
	s.Require().NoError(json.Unmarshal(rec.value, &decoded))
	s.Equal(entry.ID, decoded.ID)
	s.Equal(entry.CitizenID, decoded.CitizenID)
}

func (s *AccessLogServiceSuite) TestAppendValidation() {
	tests := []struct {
		name  string
		actor domain.Principal
		input service.AppendInput
		code  dErrors.Code
	}{
		{
			name:  "citizen cannot append",
			actor: s.asCitizen,
			input: service.AppendInput{CitizenID: s.citizen, Purpose: "x", AccessType: models.AccessRead},
			code:  dErrors.CodeUnauthorized,
		},
		{
			name:  "purpose required",
			actor: asOrg(s.orgX),
			input: service.AppendInput{CitizenID: s.citizen, Purpose: "  ", AccessType: models.AccessRead},
			code:  dErrors.CodeValidation,
		},
		{
			name:  "access type required",
			actor: asOrg(s.orgX),
			input: service.AppendInput{CitizenID: s.citizen, Purpose: "billing"},
			code:  dErrors.CodeValidation,
		},
		{
			name:  "unknown category",
			actor: asOrg(s.orgX),
			input: service.AppendInput{CitizenID: s.citizen, DataType: "Genome", Purpose: "billing", AccessType: models.AccessWrite},
			code:  dErrors.CodeInvalidCategory,
		},
		{
			name:  "unregistered organization",
			actor: domain.Principal{ID: uuid.New(), Role: domain.RoleOrganization},
			input: service.AppendInput{CitizenID: s.citizen, Purpose: "billing", AccessType: models.AccessWrite},
			code:  dErrors.CodeNotFound,
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.Append(s.ctx, tt.actor, tt.input)
			s.Require().Error(err)
			s.Equal(tt.code, dErrors.CodeOf(err))
		})
	}

	head, err := s.store.Head(s.ctx)
	s.Require().NoError(err)
	s.Zero(head)
}

func (s *AccessLogServiceSuite) TestQueryScopesByRole() {
	other := domain.NewCitizenID()
	s.appendAs(s.ctx, s.orgX, domain.CategoryHealth, "claims review")
	s.appendAs(s.ctx, s.orgY, domain.CategoryHealth, "lab results")
	_, err := s.service.Append(s.ctx, asOrg(s.orgY), service.AppendInput{
		CitizenID: other, Purpose: "lab results", AccessType: models.AccessRead,
	})
	s.Require().NoError(err)

	s.Run("citizen sees own entries only", func() {
		got := s.query(s.asCitizen, models.Filter{})
		s.Len(got, 2)
		for _, e := range got {
			s.Equal(s.citizen, e.CitizenID)
		}
	})

	s.Run("citizen cannot widen to another citizen", func() {
		_, err := s.service.Query(s.ctx, s.asCitizen, models.Filter{CitizenID: &other})
		s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	s.Run("organization sees own entries only", func() {
		got := s.query(asOrg(s.orgY), models.Filter{})
		s.Len(got, 2)
		for _, e := range got {
			s.Equal(s.orgY.ID, e.OrganizationID)
		}
		_, err := s.service.Query(s.ctx, asOrg(s.orgY), models.Filter{OrganizationID: &s.orgX.ID})
		s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	s.Run("oversight sees everything and may filter", func() {
		s.Len(s.query(oversight, models.Filter{}), 3)
		s.Len(s.query(oversight, models.Filter{OrganizationID: &s.orgX.ID}), 1)
		s.Len(s.query(oversight, models.Filter{Text: "metro"}), 2)
		s.Len(s.query(oversight, models.Filter{Text: "CLAIMS"}), 1)
	})

	s.Run("inverted date range is rejected", func() {
		now := time.Now()
		_, err := s.service.Query(s.ctx, oversight, models.Filter{From: now, To: now.Add(-time.Hour)})
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})
}

func (s *AccessLogServiceSuite) TestQueryIsLazyOrderedAndRestartable() {
	for i := range 5 {
		s.appendAs(s.ctx, s.orgX, domain.CategoryContact, fmt.Sprintf("notice %d", i))
	}
	seq, err := s.service.Query(s.ctx, oversight, models.Filter{})
	s.Require().NoError(err)

	first, err := service.Collect(seq, 0)
	s.Require().NoError(err)
	s.Require().Len(first, 5)
	for i := 1; i < len(first); i++ {
		s.Greater(first[i-1].ID, first[i].ID)
	}

	again, err := service.Collect(seq, 0)
	s.Require().NoError(err)
	s.Equal(first, again)

	limited, err := service.Collect(seq, 3)
	s.Require().NoError(err)
	s.Equal(first[:3], limited)

	s.appendAs(s.ctx, s.orgX, domain.CategoryContact, "notice 5")
	grown, err := service.Collect(seq, 0)
	s.Require().NoError(err)
	s.Len(grown, 6)
	s.Equal("notice 5", grown[0].Purpose)
}

func (s *AccessLogServiceSuite) TestEarlyBreakStopsPaging() {
	for i := range 4 {
		s.appendAs(s.ctx, s.orgX, domain.CategoryContact, fmt.Sprintf("notice %d", i))
	}
	seq, err := s.service.Query(s.ctx, oversight, models.Filter{})
	s.Require().NoError(err)

	seen := 0
	for e, err := range seq {
		s.Require().NoError(err)
		s.Equal(int64(4), e.ID)
		seen++
		break
	}
	s.Equal(1, seen)
}
