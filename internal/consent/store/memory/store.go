// Package memory keeps consent state in process. Writes made through a
// staged write set become visible to readers together on Commit.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"truconn/internal/consent/models"
	"truconn/internal/consent/service"
	"truconn/pkg/domain"
	"truconn/pkg/platform/sentinel"
)

type consentKey struct {
	citizen  domain.CitizenID
	category domain.DataCategory
}

type state struct {
	citizens map[domain.CitizenID]*models.Citizen
	consents map[consentKey]*models.Consent
	grants   map[domain.GrantID]*models.AccessGrant
	requests map[domain.ConsentRequestID]*models.ConsentRequest
}

func newState() state {
	return state{
		citizens: make(map[domain.CitizenID]*models.Citizen),
		consents: make(map[consentKey]*models.Consent),
		grants:   make(map[domain.GrantID]*models.AccessGrant),
		requests: make(map[domain.ConsentRequestID]*models.ConsentRequest),
	}
}

// Store is the committed state. All values handed out are copies.
type Store struct {
	mu sync.RWMutex
	state
}

func New() *Store {
	return &Store{state: newState()}
}

// Begin opens a write set; see service.Stager.
func (s *Store) Begin() service.StagedStore {
	return &staged{base: s, writes: newState()}
}

func (s *Store) CreateCitizen(_ context.Context, c *models.Citizen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.citizens[c.ID]; ok {
		return fmt.Errorf("citizen %s: %w", c.ID, sentinel.ErrConflict)
	}
	cp := *c
	s.citizens[c.ID] = &cp
	return nil
}

func (s *Store) FindCitizen(_ context.Context, id domain.CitizenID) (*models.Citizen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.citizens[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) FindConsent(_ context.Context, citizenID domain.CitizenID, category domain.DataCategory) (*models.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consents[consentKey{citizenID, category}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Store) ListConsents(_ context.Context, citizenID domain.CitizenID) ([]*models.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Consent
	for k, c := range s.consents {
		if k.citizen == citizenID {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *Store) ListConsentsCovering(_ context.Context, orgID domain.OrganizationID) ([]*models.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Consent
	for _, c := range s.consents {
		if c.Covers(orgID) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (s *Store) SaveConsent(_ context.Context, c *models.Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[consentKey{c.CitizenID, c.Category}] = c.Clone()
	return nil
}

func (s *Store) FindGrant(_ context.Context, id domain.GrantID) (*models.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return g.Clone(), nil
}

func (s *Store) FindGrantByTriple(_ context.Context, citizenID domain.CitizenID, orgID domain.OrganizationID, dataType domain.DataCategory) (*models.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.grants {
		if g.CitizenID == citizenID && g.OrganizationID == orgID && g.DataType == dataType {
			return g.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) ListGrantsByCitizen(_ context.Context, citizenID domain.CitizenID) ([]*models.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grantsWhere(func(g *models.AccessGrant) bool { return g.CitizenID == citizenID }), nil
}

func (s *Store) ListGrantsByOrganization(_ context.Context, orgID domain.OrganizationID) ([]*models.AccessGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grantsWhere(func(g *models.AccessGrant) bool { return g.OrganizationID == orgID }), nil
}

// grantsWhere must be called with mu held.
func (s *Store) grantsWhere(match func(*models.AccessGrant) bool) []*models.AccessGrant {
	var out []*models.AccessGrant
	for _, g := range s.grants {
		if match(g) {
			out = append(out, g.Clone())
		}
	}
	return out
}

func (s *Store) SaveGrant(_ context.Context, g *models.AccessGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putGrant(g)
	return nil
}

// putGrant must be called with mu held. A concurrent Touch may have moved
// LastAccessedAt past the copy being written; the later value wins.
func (s *Store) putGrant(g *models.AccessGrant) {
	cp := g.Clone()
	cp.OrganizationName = ""
	if prev, ok := s.grants[g.ID]; ok && prev.LastAccessedAt != nil {
		cp.Touch(*prev.LastAccessedAt)
	}
	s.grants[g.ID] = cp
}

func (s *Store) TouchGrants(_ context.Context, ids []domain.GrantID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if g, ok := s.grants[id]; ok {
			g.Touch(at)
		}
	}
	return nil
}

func (s *Store) FindRequest(_ context.Context, id domain.ConsentRequestID) (*models.ConsentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) ListRequestsByCitizen(_ context.Context, citizenID domain.CitizenID) ([]*models.ConsentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requestsWhere(func(r *models.ConsentRequest) bool { return r.CitizenID == citizenID }), nil
}

func (s *Store) ListRequestsByOrganization(_ context.Context, orgID domain.OrganizationID) ([]*models.ConsentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requestsWhere(func(r *models.ConsentRequest) bool { return r.OrganizationID == orgID }), nil
}

func (s *Store) requestsWhere(match func(*models.ConsentRequest) bool) []*models.ConsentRequest {
	var out []*models.ConsentRequest
	for _, r := range s.requests {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *Store) SaveRequest(_ context.Context, r *models.ConsentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r.Clone()
	cp.OrganizationName = ""
	s.requests[r.ID] = cp
	return nil
}
