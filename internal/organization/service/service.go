package service

import (
	"context"
	"errors"
	"log/slog"

	"truconn/internal/organization/models"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	"truconn/pkg/platform/sentinel"
	"truconn/pkg/requestcontext"
)

type Store interface {
	CreateIfNameAvailable(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, id domain.OrganizationID) (*models.Organization, error)
	FindMany(ctx context.Context, ids []domain.OrganizationID) (map[domain.OrganizationID]*models.Organization, error)
	List(ctx context.Context, status models.Status) ([]*models.Organization, error)
	Execute(ctx context.Context, id domain.OrganizationID, validate func(*models.Organization) error, mutate func(*models.Organization)) (*models.Organization, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service maintains the organization directory.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, name, sector string, status models.Status) (*models.Organization, error) {
	org, err := models.NewOrganization(domain.NewOrganizationID(), name, sector, status, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.store.CreateIfNameAvailable(ctx, org); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "organization name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register organization")
	}

	s.emit(ctx, audit.Event{
		Action:         string(audit.EventOrganizationRegistered),
		OrganizationID: org.ID,
		Subject:        org.Name,
		Decision:       string(org.Status),
		ActorID:        requestcontext.Principal(ctx).ID.String(),
	})
	return org, nil
}

func (s *Service) Get(ctx context.Context, id domain.OrganizationID) (*models.Organization, error) {
	org, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return org, nil
}

// Lookup resolves many ids at once; unknown ids are absent from the result.
func (s *Service) Lookup(ctx context.Context, ids []domain.OrganizationID) (map[domain.OrganizationID]*models.Organization, error) {
	if len(ids) == 0 {
		return map[domain.OrganizationID]*models.Organization{}, nil
	}
	orgs, err := s.store.FindMany(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organizations")
	}
	return orgs, nil
}

func (s *Service) List(ctx context.Context, status models.Status) ([]*models.Organization, error) {
	orgs, err := s.store.List(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list organizations")
	}
	return orgs, nil
}

// SetStatus moves an organization between verified and revoked, or out of pending.
func (s *Service) SetStatus(ctx context.Context, id domain.OrganizationID, status models.Status) (*models.Organization, error) {
	now := requestcontext.Now(ctx)
	org, err := s.store.Execute(ctx, id,
		func(o *models.Organization) error { return o.CanChangeStatus(status) },
		func(o *models.Organization) { o.ApplyStatus(status, now) },
	)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	s.logger.InfoContext(ctx, "organization status changed",
		"organization_id", org.ID,
		"status", org.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{
		Action:         string(audit.EventOrganizationStatus),
		OrganizationID: org.ID,
		Decision:       string(org.Status),
		ActorID:        requestcontext.Principal(ctx).ID.String(),
	})
	return org, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit organization event",
			"action", event.Action,
			"error", err,
		)
	}
}

func wrapStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "organization not found")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "organization store failure")
	}
}
