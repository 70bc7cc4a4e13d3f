// Package service is the Scoring Engine and violation workflow. Scores are
// recomputed from a read-only snapshot; nothing here writes consent, grant
// or access log state.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	accessmodels "truconn/internal/accesslog/models"
	compliancemetrics "truconn/internal/compliance/metrics"
	"truconn/internal/compliance/models"
	"truconn/internal/compliance/scoring"
	consentmodels "truconn/internal/consent/models"
	orgmodels "truconn/internal/organization/models"
	"truconn/internal/platform/config"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	"truconn/pkg/platform/sentinel"
)

type ViolationStore interface {
	Create(ctx context.Context, v *models.Violation) error
	FindByID(ctx context.Context, id domain.ViolationID) (*models.Violation, error)
	List(ctx context.Context, filter models.ViolationFilter) ([]*models.Violation, error)
	Execute(ctx context.Context, id domain.ViolationID, validate func(*models.Violation) error, mutate func(*models.Violation)) (*models.Violation, error)
}

// ConsentSnapshots is the read side of the consent registry and grant ledger.
type ConsentSnapshots interface {
	GrantTotals(ctx context.Context, citizenID domain.CitizenID) (consentmodels.GrantTotals, error)
	OrganizationSnapshot(ctx context.Context, orgID domain.OrganizationID) (*consentmodels.OrganizationSnapshot, error)
}

// AccessLog is the read side of the audit trail.
type AccessLog interface {
	CountByOrganization(ctx context.Context, orgID domain.OrganizationID) (accessmodels.Counts, error)
	Head(ctx context.Context) (int64, error)
}

type OrganizationDirectory interface {
	Get(ctx context.Context, id domain.OrganizationID) (*orgmodels.Organization, error)
	List(ctx context.Context, status orgmodels.Status) ([]*orgmodels.Organization, error)
}

// ReportCache memoizes reports per snapshot key.
type ReportCache interface {
	Get(ctx context.Context, key string) (*models.ComplianceReport, bool, error)
	Set(ctx context.Context, key string, report *models.ComplianceReport) error
	Generation(ctx context.Context, orgID domain.OrganizationID) (int64, error)
	Bump(ctx context.Context, orgID domain.OrganizationID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const overviewConcurrency = 8

type Service struct {
	violations     ViolationStore
	consents       ConsentSnapshots
	accessLog      AccessLog
	orgs           OrganizationDirectory
	cache          ReportCache
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *compliancemetrics.Metrics
	tracer         trace.Tracer

	weights      scoring.Weights
	rules        scoring.RuleConfig
	expiryWindow time.Duration

	reports singleflight.Group
	scans   singleflight.Group
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *compliancemetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCache enables report memoization. Without it every read recomputes.
func WithCache(c ReportCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(violations ViolationStore, consents ConsentSnapshots, accessLog AccessLog, orgs OrganizationDirectory, cfg config.Scoring, opts ...Option) *Service {
	s := &Service{
		violations:   violations,
		consents:     consents,
		accessLog:    accessLog,
		orgs:         orgs,
		logger:       slog.Default(),
		tracer:       otel.Tracer("truconn/compliance"),
		weights:      scoring.WeightsFrom(cfg),
		rules:        scoring.RuleConfig{VaguePurposeMinLength: cfg.VaguePurposeMinLength},
		expiryWindow: time.Duration(cfg.ExpiryWindowDays) * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "compliance."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

// emit never fails the caller; the violation is already stored.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit compliance event",
			"action", event.Action,
			"organization_id", event.OrganizationID,
			"error", err,
		)
	}
}

// invalidate moves cached reports of orgID to a new generation.
func (s *Service) invalidate(ctx context.Context, orgID domain.OrganizationID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, orgID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate compliance cache",
			"organization_id", orgID,
			"error", err,
		)
	}
}

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
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" already exists")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "compliance store failure")
	}
}

func unauthorized(msg string) error {
	return dErrors.New(dErrors.CodeUnauthorized, msg)
}

func requireOversight(actor domain.Principal) error {
	if !actor.IsOversight() {
		return unauthorized("only oversight may perform this action")
	}
	return nil
}

func actorID(actor domain.Principal) string {
	return actor.ID.String()
}
