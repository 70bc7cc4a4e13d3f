package memory

import (
	"context"
	"fmt"
	"time"

	"truconn/internal/consent/models"
	"truconn/pkg/domain"
	"truconn/pkg/platform/sentinel"
)

// staged overlays uncommitted writes on the committed store. Reads see the
// overlay first. Nothing reaches the base store until Commit.
type staged struct {
	base   *Store
	writes state
}

func (t *staged) CreateCitizen(ctx context.Context, c *models.Citizen) error {
	if _, ok := t.writes.citizens[c.ID]; ok {
		return fmt.Errorf("citizen %s: %w", c.ID, sentinel.ErrConflict)
	}
	if _, err := t.base.FindCitizen(ctx, c.ID); err == nil {
		return fmt.Errorf("citizen %s: %w", c.ID, sentinel.ErrConflict)
	}
	cp := *c
	t.writes.citizens[c.ID] = &cp
	return nil
}

func (t *staged) FindCitizen(ctx context.Context, id domain.CitizenID) (*models.Citizen, error) {
	if c, ok := t.writes.citizens[id]; ok {
		cp := *c
		return &cp, nil
	}
	return t.base.FindCitizen(ctx, id)
}

func (t *staged) FindConsent(ctx context.Context, citizenID domain.CitizenID, category domain.DataCategory) (*models.Consent, error) {
	if c, ok := t.writes.consents[consentKey{citizenID, category}]; ok {
		return c.Clone(), nil
	}
	return t.base.FindConsent(ctx, citizenID, category)
}

func (t *staged) ListConsents(ctx context.Context, citizenID domain.CitizenID) ([]*models.Consent, error) {
	committed, err := t.base.ListConsents(ctx, citizenID)
	if err != nil {
		return nil, err
	}
	byKey := make(map[consentKey]*models.Consent, len(committed))
	for _, c := range committed {
		byKey[consentKey{c.CitizenID, c.Category}] = c
	}
	for k, c := range t.writes.consents {
		if k.citizen == citizenID {
			byKey[k] = c.Clone()
		}
	}
	out := make([]*models.Consent, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, c)
	}
	return out, nil
}

func (t *staged) ListConsentsCovering(ctx context.Context, orgID domain.OrganizationID) ([]*models.Consent, error) {
	committed, err := t.base.ListConsentsCovering(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var out []*models.Consent
	for _, c := range committed {
		if _, shadowed := t.writes.consents[consentKey{c.CitizenID, c.Category}]; !shadowed {
			out = append(out, c)
		}
	}
	for _, c := range t.writes.consents {
		if c.Covers(orgID) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (t *staged) SaveConsent(_ context.Context, c *models.Consent) error {
	t.writes.consents[consentKey{c.CitizenID, c.Category}] = c.Clone()
	return nil
}

func (t *staged) FindGrant(ctx context.Context, id domain.GrantID) (*models.AccessGrant, error) {
	if g, ok := t.writes.grants[id]; ok {
		return g.Clone(), nil
	}
	return t.base.FindGrant(ctx, id)
}

func (t *staged) FindGrantByTriple(ctx context.Context, citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory) (*models.AccessGrant, error) {
	grants, err := t.ListGrantsByCitizen(ctx, citizenID)
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		if g.OrganizationID == orgID && g.DataType == dataType {
			return g, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (t *staged) ListGrantsByCitizen(ctx context.Context, citizenID domain.CitizenID) ([]*models.AccessGrant, error) {
	committed, err := t.base.ListGrantsByCitizen(ctx, citizenID)
	if err != nil {
		return nil, err
	}
	return t.mergeGrants(committed, func(g *models.AccessGrant) bool { return g.CitizenID == citizenID }), nil
}

func (t *staged) ListGrantsByOrganization(ctx context.Context, orgID domain.OrganizationID) ([]*models.AccessGrant, error) {
	committed, err := t.base.ListGrantsByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return t.mergeGrants(committed, func(g *models.AccessGrant) bool { return g.OrganizationID == orgID }), nil
}

func (t *staged) mergeGrants(committed []*models.AccessGrant, match func(*models.AccessGrant) bool) []*models.AccessGrant {
	out := make([]*models.AccessGrant, 0, len(committed))
	for _, g := range committed {
		if _, shadowed := t.writes.grants[g.ID]; !shadowed {
			out = append(out, g)
		}
	}
	for _, g := range t.writes.grants {
		if match(g) {
			out = append(out, g.Clone())
		}
	}
	return out
}

func (t *staged) SaveGrant(_ context.Context, g *models.AccessGrant) error {
	t.writes.grants[g.ID] = g.Clone()
	return nil
}

// TouchGrants goes straight to the committed store; see Store.putGrant.
func (t *staged) TouchGrants(ctx context.Context, ids []domain.GrantID, at time.Time) error {
	return t.base.TouchGrants(ctx, ids, at)
}

func (t *staged) FindRequest(ctx context.Context, id domain.ConsentRequestID) (*models.ConsentRequest, error) {
	if r, ok := t.writes.requests[id]; ok {
		return r.Clone(), nil
	}
	return t.base.FindRequest(ctx, id)
}

func (t *staged) ListRequestsByCitizen(ctx context.Context, citizenID domain.CitizenID) ([]*models.ConsentRequest, error) {
	committed, err := t.base.ListRequestsByCitizen(ctx, citizenID)
	if err != nil {
		return nil, err
	}
	return t.mergeRequests(committed, func(r *models.ConsentRequest) bool { return r.CitizenID == citizenID }), nil
}

func (t *staged) ListRequestsByOrganization(ctx context.Context, orgID domain.OrganizationID) ([]*models.ConsentRequest, error) {
	committed, err := t.base.ListRequestsByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return t.mergeRequests(committed, func(r *models.ConsentRequest) bool { return r.OrganizationID == orgID }), nil
}

func (t *staged) mergeRequests(committed []*models.ConsentRequest, match func(*models.ConsentRequest) bool) []*models.ConsentRequest {
	out := make([]*models.ConsentRequest, 0, len(committed))
	for _, r := range committed {
		if _, shadowed := t.writes.requests[r.ID]; !shadowed {
			out = append(out, r)
		}
	}
	for _, r := range t.writes.requests {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (t *staged) SaveRequest(_ context.Context, r *models.ConsentRequest) error {
	t.writes.requests[r.ID] = r.Clone()
	return nil
}

// Commit publishes the write set atomically with respect to readers.
func (t *staged) Commit() {
	b := t.base
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range t.writes.citizens {
		b.citizens[id] = c
	}
	for k, c := range t.writes.consents {
		b.consents[k] = c
	}
	for _, g := range t.writes.grants {
		b.putGrant(g)
	}
	for id, r := range t.writes.requests {
		r.OrganizationName = ""
		b.requests[id] = r
	}
}
