package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	consentmetrics "truconn/internal/consent/metrics"
	"truconn/internal/consent/models"
	orgmodels "truconn/internal/organization/models"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	"truconn/pkg/platform/sentinel"
)

// Store persists citizens, consents, grants and requests. Implementations
// return sentinel errors; the service translates them.
type Store interface {
	CreateCitizen(ctx context.Context, citizen *models.Citizen) error
	FindCitizen(ctx context.Context, id domain.CitizenID) (*models.Citizen, error)

	FindConsent(ctx context.Context, citizenID domain.CitizenID, category domain.DataCategory) (*models.Consent, error)
	ListConsents(ctx context.Context, citizenID domain.CitizenID) ([]*models.Consent, error)
	ListConsentsCovering(ctx context.Context, orgID domain.OrganizationID) ([]*models.Consent, error)
	SaveConsent(ctx context.Context, consent *models.Consent) error

	FindGrant(ctx context.Context, id domain.GrantID) (*models.AccessGrant, error)
	FindGrantByTriple(ctx context.Context, citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory) (*models.AccessGrant, error)
	ListGrantsByCitizen(ctx context.Context, citizenID domain.CitizenID) ([]*models.AccessGrant, error)
	ListGrantsByOrganization(ctx context.Context, orgID domain.OrganizationID) ([]*models.AccessGrant, error)
	SaveGrant(ctx context.Context, grant *models.AccessGrant) error
	TouchGrants(ctx context.Context, ids []domain.GrantID, at time.Time) error

	FindRequest(ctx context.Context, id domain.ConsentRequestID) (*models.ConsentRequest, error)
	ListRequestsByCitizen(ctx context.Context, citizenID domain.CitizenID) ([]*models.ConsentRequest, error)
	ListRequestsByOrganization(ctx context.Context, orgID domain.OrganizationID) ([]*models.ConsentRequest, error)
	SaveRequest(ctx context.Context, request *models.ConsentRequest) error
}

// OrganizationDirectory resolves organizations referenced by grants and requests.
type OrganizationDirectory interface {
	Get(ctx context.Context, id domain.OrganizationID) (*orgmodels.Organization, error)
	Lookup(ctx context.Context, ids []domain.OrganizationID) (map[domain.OrganizationID]*orgmodels.Organization, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the Consent Registry, Access Grant Ledger and Request workflow.
// Every mutation runs inside StoreTx scoped to one citizen.
type Service struct {
	store          Store
	tx             StoreTx
	orgs           OrganizationDirectory
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *consentmetrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *consentmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store Store, tx StoreTx, orgs OrganizationDirectory, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     tx,
		orgs:   orgs,
		logger: slog.Default(),
		tracer: otel.Tracer("truconn/consent"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "consent."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

// emit publishes within the caller's transaction. A failure aborts the
// transaction so no committed change lacks its event.
func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit consent event",
			"action", event.Action,
			"citizen_id", event.CitizenID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record lifecycle event")
	}
	return nil
}

// wrapStoreErr translates store sentinels into domain errors. Domain errors
// pass through unchanged.
func wrapStoreErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update on citizen record, retry")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, what+" is in an invalid state")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "consent store failure")
	}
}

func requireCategory(c domain.DataCategory) error {
	if !c.IsValid() {
		return dErrors.New(dErrors.CodeInvalidCategory, "unknown data category: "+string(c))
	}
	return nil
}

func unauthorized(msg string) error {
	return dErrors.New(dErrors.CodeUnauthorized, msg)
}

// requireCitizen ensures actor is the citizen that owns the record.
func requireCitizen(actor domain.Principal, citizenID domain.CitizenID) error {
	if !actor.IsCitizen(citizenID) {
		return unauthorized("only the owning citizen may change this record")
	}
	return nil
}

// requireCitizenOrOversight guards read models owned by a citizen.
func requireCitizenOrOversight(actor domain.Principal, citizenID domain.CitizenID) error {
	if actor.IsCitizen(citizenID) || actor.IsOversight() {
		return nil
	}
	return unauthorized("caller may not read this citizen's records")
}

func requireOrganizationOrOversight(actor domain.Principal, orgID domain.OrganizationID) error {
	if actor.IsOrganization(orgID) || actor.IsOversight() {
		return nil
	}
	return unauthorized("caller may not read this organization's records")
}

// requireCitizenExists is called inside a transaction.
func requireCitizenExists(ctx context.Context, store Store, citizenID domain.CitizenID) error {
	if _, err := store.FindCitizen(ctx, citizenID); err != nil {
		return wrapStoreErr(err, "citizen registry")
	}
	return nil
}

// requireGrantableOrganization rejects unknown and revoked organizations.
func (s *Service) requireGrantableOrganization(ctx context.Context, orgID domain.OrganizationID) (*orgmodels.Organization, error) {
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.CanReceiveGrants() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "organization "+org.Name+" is revoked")
	}
	return org, nil
}

func actorID(actor domain.Principal) string {
	if actor.IsZero() {
		return ""
	}
	return actor.ID.String()
}
