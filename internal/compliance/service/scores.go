package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"truconn/internal/compliance/cache"
	"truconn/internal/compliance/models"
	"truconn/internal/compliance/scoring"
	orgmodels "truconn/internal/organization/models"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/requestcontext"
)

// ExposureScore is the citizen-facing score over the citizen's grant history.
func (s *Service) ExposureScore(ctx context.Context, actor domain.Principal, citizenID domain.CitizenID) (report *models.ExposureReport, err error) {
	ctx, span := s.startSpan(ctx, "ExposureScore")
	defer func() { endSpan(span, err) }()

	if !actor.IsCitizen(citizenID) && !actor.IsOversight() {
		return nil, unauthorized("caller may not read this citizen's exposure")
	}
	totals, err := s.consents.GrantTotals(ctx, citizenID)
	if err != nil {
		return nil, err
	}
	score := scoring.ExposureScore(totals.Active, totals.Total)
	band := models.BandFor(score)
	s.metrics.IncrementScore("exposure")
	return &models.ExposureReport{
		CitizenID:    citizenID,
		Score:        score,
		Band:         band,
		BandLabel:    band.Label(),
		ActiveGrants: totals.Active,
		TotalGrants:  totals.Total,
	}, nil
}

// ComplianceReport is readable by the organization itself and by oversight.
func (s *Service) ComplianceReport(ctx context.Context, actor domain.Principal, orgID domain.OrganizationID) (report *models.ComplianceReport, err error) {
	ctx, span := s.startSpan(ctx, "ComplianceReport")
	defer func() { endSpan(span, err) }()

	if !actor.IsOrganization(orgID) && !actor.IsOversight() {
		return nil, unauthorized("caller may not read this organization's compliance")
	}
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.report(ctx, org)
}

// report serves from the cache when the snapshot key is unchanged and
// collapses concurrent computations of the same key.
func (s *Service) report(ctx context.Context, org *orgmodels.Organization) (*models.ComplianceReport, error) {
	key := s.cacheKey(ctx, org.ID)
	if key != "" {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "compliance cache read failed", "organization_id", org.ID, "error", err)
		case ok:
			s.metrics.IncrementCache("hit")
			return cached, nil
		default:
			s.metrics.IncrementCache("miss")
		}
	}

	flightKey := key
	if flightKey == "" {
		flightKey = org.ID.String()
	}
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.reports.Do(flightKey, func() (any, error) {
		report, err := s.computeReport(shared, org)
		if err != nil {
			return nil, err
		}
		if key != "" {
			if err := s.cache.Set(shared, key, report); err != nil {
				s.logger.WarnContext(shared, "compliance cache write failed", "organization_id", org.ID, "error", err)
			}
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.ComplianceReport), nil
}

// cacheKey is empty when caching is off or the snapshot version is unknown.
func (s *Service) cacheKey(ctx context.Context, orgID domain.OrganizationID) string {
	if s.cache == nil {
		return ""
	}
	gen, err := s.cache.Generation(ctx, orgID)
	if err != nil {
		s.logger.WarnContext(ctx, "compliance cache unavailable", "organization_id", orgID, "error", err)
		return ""
	}
	head, err := s.accessLog.Head(ctx)
	if err != nil {
		return ""
	}
	return cache.Key(orgID, gen, head)
}

func (s *Service) computeReport(ctx context.Context, org *orgmodels.Organization) (*models.ComplianceReport, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveReportDuration(time.Since(start).Seconds()) }()

	now := requestcontext.Now(ctx)
	open, err := s.violations.List(ctx, models.ViolationFilter{OrganizationID: &org.ID, Unresolved: true})
	if err != nil {
		return nil, wrapStoreErr(err, "violations")
	}
	counts, err := s.accessLog.CountByOrganization(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	snap, err := s.consents.OrganizationSnapshot(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	bySeverity := map[models.Severity]int{}
	for _, v := range open {
		bySeverity[v.Severity]++
	}
	inputs := scoring.RiskInputs{
		OpenViolations:    bySeverity,
		UnauthorizedRatio: counts.UnauthorizedRatio(),
		ExpiringConsents:  scoring.ExpiringConsents(snap.Consents, now, s.expiryWindow),
	}
	score := scoring.RiskScore(s.weights, inputs)
	band := models.BandFor(score)
	s.metrics.IncrementScore("compliance")

	return &models.ComplianceReport{
		OrganizationID:    org.ID,
		OrganizationName:  org.Name,
		RiskScore:         score,
		Band:              band,
		BandLabel:         band.Label(),
		OpenViolations:    bySeverity,
		UnauthorizedRatio: inputs.UnauthorizedRatio,
		AuditEntries:      counts.Total,
		ExpiringConsents:  inputs.ExpiringConsents,
		ComputedAt:        now,
	}, nil
}

// NationalOverview scores every registered organization for oversight.
func (s *Service) NationalOverview(ctx context.Context, actor domain.Principal) (overview *models.NationalOverview, err error) {
	ctx, span := s.startSpan(ctx, "NationalOverview")
	defer func() { endSpan(span, err) }()

	if err := requireOversight(actor); err != nil {
		return nil, err
	}
	orgs, err := s.orgs.List(ctx, "")
	if err != nil {
		return nil, err
	}

	reports := make([]*models.ComplianceReport, len(orgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i, org := range orgs {
		g.Go(func() error {
			r, err := s.report(gctx, org)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute national overview")
		}
		return nil, err
	}

	scores := make([]float64, len(reports))
	for i, r := range reports {
		scores[i] = r.RiskScore
	}
	avg := scoring.Average(scores)
	band := models.BandFor(avg)
	return &models.NationalOverview{
		Organizations:    reports,
		AverageRiskScore: avg,
		Band:             band,
		BandLabel:        band.Label(),
	}, nil
}
