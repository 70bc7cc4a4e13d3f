package service

import (
	"context"

	"truconn/internal/compliance/models"
	"truconn/internal/compliance/scoring"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/audit"
	"truconn/pkg/requestcontext"
)

// OpenViolationInput is a manual finding raised by oversight.
type OpenViolationInput struct {
	OrganizationID domain.OrganizationID
	IssueType      models.IssueType
	Severity       models.Severity
	Description    string
}

func (s *Service) OpenViolation(ctx context.Context, actor domain.Principal, in OpenViolationInput) (v *models.Violation, err error) {
	ctx, span := s.startSpan(ctx, "OpenViolation")
	defer func() { endSpan(span, err) }()

	if err := requireOversight(actor); err != nil {
		return nil, err
	}
	if _, err := s.orgs.Get(ctx, in.OrganizationID); err != nil {
		return nil, err
	}
	v, err = models.NewViolation(in.OrganizationID, in.IssueType, in.Severity, in.Description, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, actorID(actor), v, "manual"); err != nil {
		return nil, err
	}
	s.invalidate(ctx, v.OrganizationID)
	return v, nil
}

// create stores v and records who opened it. actor is empty for scans.
func (s *Service) create(ctx context.Context, actor string, v *models.Violation, source string) error {
	if err := s.violations.Create(ctx, v); err != nil {
		return wrapStoreErr(err, "violation")
	}
	s.metrics.IncrementViolationOpened(string(v.IssueType), source)
	s.logger.InfoContext(ctx, "violation opened",
		"request_id", requestcontext.RequestID(ctx),
		"violation_id", v.ID,
		"organization_id", v.OrganizationID,
		"issue_type", v.IssueType,
		"severity", v.Severity,
		"source", source,
	)
	s.emit(ctx, audit.Event{
		Action:         string(audit.EventViolationOpened),
		OrganizationID: v.OrganizationID,
		Subject:        v.ID.String(),
		Decision:       string(v.Severity),
		Reason:         string(v.IssueType),
		ActorID:        actor,
	})
	return nil
}

// AdvanceViolation moves a violation forward. An empty target means the
// next status; moving backwards or staying put is InvalidState.
func (s *Service) AdvanceViolation(ctx context.Context, actor domain.Principal, id domain.ViolationID, target models.ViolationStatus, action string) (v *models.Violation, err error) {
	ctx, span := s.startSpan(ctx, "AdvanceViolation")
	defer func() { endSpan(span, err) }()

	if err := requireOversight(actor); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var to models.ViolationStatus
	v, err = s.violations.Execute(ctx, id,
		func(cur *models.Violation) error {
			to = target
			if to == "" {
				next, ok := cur.Status.Next()
				if !ok {
					return dErrors.New(dErrors.CodeInvalidState, "violation is already resolved")
				}
				to = next
			}
			return cur.CanAdvanceTo(to)
		},
		func(cur *models.Violation) {
			cur.Advance(to, action, now)
		},
	)
	if err != nil {
		return nil, wrapStoreErr(err, "violation")
	}

	s.metrics.IncrementViolationAdvanced(string(v.Status))
	s.emit(ctx, audit.Event{
		Action:         string(audit.EventViolationAdvanced),
		OrganizationID: v.OrganizationID,
		Subject:        v.ID.String(),
		Decision:       string(v.Status),
		Reason:         v.ActionTaken,
		ActorID:        actorID(actor),
	})
	s.invalidate(ctx, v.OrganizationID)
	return v, nil
}

// ListViolations shows oversight everything and an organization its own.
func (s *Service) ListViolations(ctx context.Context, actor domain.Principal, filter models.ViolationFilter) ([]*models.Violation, error) {
	switch actor.Role {
	case domain.RoleOversight:
	case domain.RoleOrganization:
		id := actor.OrganizationID()
		if filter.OrganizationID != nil && *filter.OrganizationID != id {
			return nil, unauthorized("organizations may only list their own violations")
		}
		filter.OrganizationID = &id
	default:
		return nil, unauthorized("caller may not list violations")
	}
	out, err := s.violations.List(ctx, filter)
	if err != nil {
		return nil, wrapStoreErr(err, "violations")
	}
	return out, nil
}

// Scan runs the anomaly rules for one organization and opens a violation per
// finding, skipping issue types that already have an unresolved violation.
// Concurrent scans of the same organization share one run, which outlives
// any single caller's cancellation and is attributed to no caller.
func (s *Service) Scan(ctx context.Context, actor domain.Principal, orgID domain.OrganizationID) (opened []*models.Violation, err error) {
	ctx, span := s.startSpan(ctx, "Scan")
	defer func() { endSpan(span, err) }()

	if err := requireOversight(actor); err != nil {
		return nil, err
	}
	if _, err := s.orgs.Get(ctx, orgID); err != nil {
		return nil, err
	}
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.scans.Do(orgID.String(), func() (any, error) {
		return s.scan(shared, orgID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.Violation), nil
}

func (s *Service) scan(ctx context.Context, orgID domain.OrganizationID) ([]*models.Violation, error) {
	now := requestcontext.Now(ctx)
	snap, err := s.consents.OrganizationSnapshot(ctx, orgID)
	if err != nil {
		return nil, err
	}
	counts, err := s.accessLog.CountByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	existing, err := s.violations.List(ctx, models.ViolationFilter{OrganizationID: &orgID, Unresolved: true})
	if err != nil {
		return nil, wrapStoreErr(err, "violations")
	}
	open := make(map[models.IssueType]bool, len(existing))
	for _, v := range existing {
		open[v.IssueType] = true
	}

	findings := scoring.Evaluate(s.rules, scoring.Snapshot{Now: now, Consent: snap, Unauthorized: counts.Unauthorized})
	opened := []*models.Violation{}
	for _, f := range findings {
		if open[f.IssueType] {
			continue
		}
		v, err := models.NewViolation(orgID, f.IssueType, f.Severity, f.Description, now)
		if err != nil {
			return nil, err
		}
		if err := s.create(ctx, "", v, "scan"); err != nil {
			return nil, err
		}
		opened = append(opened, v)
	}
	if len(opened) > 0 {
		s.invalidate(ctx, orgID)
	}
	s.logger.InfoContext(ctx, "compliance scan finished",
		"organization_id", orgID,
		"findings", len(findings),
		"opened", len(opened),
	)
	return opened, nil
}
