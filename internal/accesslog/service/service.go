package service

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accessmetrics "truconn/internal/accesslog/metrics"
	"truconn/internal/accesslog/models"
	orgmodels "truconn/internal/organization/models"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	"truconn/pkg/requestcontext"
)

// Store is the append-only trail. Append assigns ID and may move DateTime
// forward to keep the log ordered.
type Store interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	Head(ctx context.Context) (int64, error)
	Page(ctx context.Context, filter models.Filter, before int64, limit int) ([]*models.AuditEntry, error)
	CountByOrganization(ctx context.Context, orgID domain.OrganizationID) (models.Counts, error)
}

// GrantLedger resolves and touches the grants backing an access.
type GrantLedger interface {
	ActiveGrantIDs(ctx context.Context, citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory) ([]domain.GrantID, error)
	TouchGrants(ctx context.Context, ids []domain.GrantID, at time.Time) error
}

type OrganizationDirectory interface {
	Get(ctx context.Context, id domain.OrganizationID) (*orgmodels.Organization, error)
}

// Publisher hands entries to the event stream without blocking.
type Publisher interface {
	PublishAsync(ctx context.Context, topic string, key, value []byte)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const defaultPageSize = 200

type Service struct {
	store          Store
	grants         GrantLedger
	orgs           OrganizationDirectory
	publisher      Publisher
	topic          string
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *accessmetrics.Metrics
	tracer         trace.Tracer
	pageSize       int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *accessmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher streams every appended entry to topic.
func WithPublisher(p Publisher, topic string) Option {
	return func(s *Service) {
		s.publisher = p
		s.topic = topic
	}
}

// WithAuditPublisher receives an unauthorized_access event for every append
// without a live grant.
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

// WithPageSize bounds how many entries a query reads from the store at once.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func New(store Store, grants GrantLedger, orgs OrganizationDirectory, opts ...Option) *Service {
	s := &Service{
		store:    store,
		grants:   grants,
		orgs:     orgs,
		logger:   slog.Default(),
		tracer:   otel.Tracer("truconn/accesslog"),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendInput is what an organization reports about one access.
type AppendInput struct {
	CitizenID  domain.CitizenID
	DataType   domain.DataCategory
	Purpose    string
	AccessType models.AccessType
}

// Append records an access by the calling organization. Access without a
// live grant is recorded, not rejected.
func (s *Service) Append(ctx context.Context, actor domain.Principal, in AppendInput) (entry *models.AuditEntry, err error) {
	ctx, span := s.tracer.Start(ctx, "accesslog.Append")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
	}()

	if actor.Role != domain.RoleOrganization {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only organizations record access")
	}
	if in.CitizenID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "citizen id is required")
	}
	if in.DataType != "" && !in.DataType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidCategory, "unknown data category: "+string(in.DataType))
	}
	if in.AccessType != models.AccessRead && in.AccessType != models.AccessWrite {
		return nil, dErrors.New(dErrors.CodeValidation, "access type must be Read or Write")
	}
	purpose := strings.TrimSpace(in.Purpose)
	if purpose == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose is required")
	}

	orgID := actor.OrganizationID()
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	grantIDs, err := s.grants.ActiveGrantIDs(ctx, in.CitizenID, orgID, in.DataType)
	if err != nil {
		return nil, err
	}

	entry = &models.AuditEntry{
		OrganizationID:   orgID,
		OrganizationName: org.Name,
		CitizenID:        in.CitizenID,
		DataType:         in.DataType,
		DateTime:         requestcontext.Now(ctx),
		Purpose:          purpose,
		AccessType:       in.AccessType,
		Authorized:       len(grantIDs) > 0,
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit entry")
	}
	s.metrics.IncrementAppend(string(entry.AccessType), entry.Authorized)

	// The entry is committed; follow-up failures are logged, never returned.
	if err := s.grants.TouchGrants(ctx, grantIDs, entry.DateTime); err != nil {
		s.logger.WarnContext(ctx, "failed to update grant last access",
			"request_id", requestcontext.RequestID(ctx),
			"audit_entry_id", entry.ID,
			"error", err,
		)
	}
	if !entry.Authorized {
		s.logger.WarnContext(ctx, "access recorded without a live grant",
			"request_id", requestcontext.RequestID(ctx),
			"organization_id", orgID,
			"citizen_id", in.CitizenID,
			"data_type", in.DataType,
		)
		s.emitUnauthorized(ctx, entry)
	}
	s.publish(ctx, entry)
	return entry, nil
}

func (s *Service) emitUnauthorized(ctx context.Context, entry *models.AuditEntry) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:         string(audit.EventUnauthorizedAccess),
		CitizenID:      entry.CitizenID,
		OrganizationID: entry.OrganizationID,
		DataCategory:   entry.DataType,
		Subject:        strconv.FormatInt(entry.ID, 10),
		Reason:         "no active grant",
		ActorID:        entry.OrganizationID.String(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit unauthorized access event",
			"audit_entry_id", entry.ID,
			"error", err,
		)
	}
}

func (s *Service) publish(ctx context.Context, entry *models.AuditEntry) {
	if s.publisher == nil {
		return
	}
	value, err := json.Marshal(entry)
	if err != nil {
		s.metrics.IncrementPublishDropped()
		s.logger.ErrorContext(ctx, "failed to encode audit entry", "error", err)
		return
	}
	s.publisher.PublishAsync(ctx, s.topic, []byte(entry.OrganizationID.String()), value)
}

// Query returns a lazy, newest-first sequence scoped to what actor may see.
// Each range over the sequence replays the log as of the moment iteration
// starts. The error element is non-nil at most once, as the last element.
func (s *Service) Query(ctx context.Context, actor domain.Principal, filter models.Filter) (iter.Seq2[*models.AuditEntry, error], error) {
	switch actor.Role {
	case domain.RoleCitizen:
		id := actor.CitizenID()
		if filter.CitizenID != nil && *filter.CitizenID != id {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "citizens may only read their own access log")
		}
		filter.CitizenID = &id
	case domain.RoleOrganization:
		id := actor.OrganizationID()
		if filter.OrganizationID != nil && *filter.OrganizationID != id {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "organizations may only read their own access log")
		}
		filter.OrganizationID = &id
	case domain.RoleOversight:
	default:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller may not read the access log")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, dErrors.New(dErrors.CodeValidation, "date range end is before its start")
	}
	filter.Text = strings.TrimSpace(filter.Text)

	return func(yield func(*models.AuditEntry, error) bool) {
		head, err := s.store.Head(ctx)
		if err != nil {
			yield(nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail"))
			return
		}
		before := head + 1
		for {
			page, err := s.store.Page(ctx, filter, before, s.pageSize)
			if err != nil {
				yield(nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail"))
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
				before = e.ID
			}
			if len(page) < s.pageSize {
				return
			}
		}
	}, nil
}

// Collect drains up to limit entries from a query. limit <= 0 drains everything.
func Collect(seq iter.Seq2[*models.AuditEntry, error], limit int) ([]*models.AuditEntry, error) {
	out := []*models.AuditEntry{}
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CountByOrganization feeds the unauthorized-access signal of the risk score.
func (s *Service) CountByOrganization(ctx context.Context, orgID domain.OrganizationID) (models.Counts, error) {
	c, err := s.store.CountByOrganization(ctx, orgID)
	if err != nil {
		return c, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count audit entries")
	}
	return c, nil
}

// Head is the id of the newest entry, 0 for an empty log. It only grows.
func (s *Service) Head(ctx context.Context) (int64, error) {
	head, err := s.store.Head(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit trail")
	}
	return head, nil
}
