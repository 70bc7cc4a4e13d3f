package service

import (
	"context"

	"truconn/internal/consent/models"
	"truconn/pkg/domain"
)

// GrantTotals feeds the exposure score. It reads without the citizen scope;
// a stale but consistent answer is acceptable.
func (s *Service) GrantTotals(ctx context.Context, citizenID domain.CitizenID) (models.GrantTotals, error) {
	var totals models.GrantTotals
	if err := requireCitizenExists(ctx, s.store, citizenID); err != nil {
		return totals, err
	}
	grants, err := s.store.ListGrantsByCitizen(ctx, citizenID)
	if err != nil {
		return totals, wrapStoreErr(err, "grants")
	}
	totals.Total = len(grants)
	for _, g := range grants {
		if g.IsActive() {
			totals.Active++
		}
	}
	return totals, nil
}

// OrganizationSnapshot collects the grants, covering consents and requests
// of one organization for the compliance rules.
func (s *Service) OrganizationSnapshot(ctx context.Context, orgID domain.OrganizationID) (*models.OrganizationSnapshot, error) {
	grants, err := s.store.ListGrantsByOrganization(ctx, orgID)
	if err != nil {
		return nil, wrapStoreErr(err, "grants")
	}
	consents, err := s.store.ListConsentsCovering(ctx, orgID)
	if err != nil {
		return nil, wrapStoreErr(err, "consents")
	}
	requests, err := s.store.ListRequestsByOrganization(ctx, orgID)
	if err != nil {
		return nil, wrapStoreErr(err, "requests")
	}
	return &models.OrganizationSnapshot{Grants: grants, Consents: consents, Requests: requests}, nil
}
