package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"truconn/internal/organization/models"
	"truconn/pkg/domain"
	"truconn/pkg/platform/sentinel"
)

// InMemory is a directory store for development and tests.
type InMemory struct {
	mu     sync.RWMutex
	byID   map[domain.OrganizationID]*models.Organization
	byName map[string]domain.OrganizationID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:   make(map[domain.OrganizationID]*models.Organization),
		byName: make(map[string]domain.OrganizationID),
	}
}

func (s *InMemory) CreateIfNameAvailable(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := org.NameKey()
	if _, taken := s.byName[key]; taken {
		return fmt.Errorf("organization name %q: %w", org.Name, sentinel.ErrConflict)
	}
	if _, taken := s.byID[org.ID]; taken {
		return fmt.Errorf("organization id %s: %w", org.ID, sentinel.ErrConflict)
	}
	c := *org
	s.byID[org.ID] = &c
	s.byName[key] = org.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.OrganizationID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *org
	return &c, nil
}

func (s *InMemory) FindByName(_ context.Context, name string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[models.NameKey(name)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *s.byID[id]
	return &c, nil
}

// FindMany returns the organizations that exist among ids. Missing ids are skipped.
func (s *InMemory) FindMany(_ context.Context, ids []domain.OrganizationID) (map[domain.OrganizationID]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.OrganizationID]*models.Organization, len(ids))
	for _, id := range ids {
		if org, ok := s.byID[id]; ok {
			c := *org
			out[id] = &c
		}
	}
	return out, nil
}

// List returns organizations ordered by name; an empty status matches all.
func (s *InMemory) List(_ context.Context, status models.Status) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Organization, 0, len(s.byID))
	for _, org := range s.byID {
		if status != "" && org.Status != status {
			continue
		}
		c := *org
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameKey() < out[j].NameKey() })
	return out, nil
}

// Execute runs validate then mutate under the store lock and persists the result.
func (s *InMemory) Execute(_ context.Context, id domain.OrganizationID, validate func(*models.Organization) error, mutate func(*models.Organization)) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *org
	if err := validate(&c); err != nil {
		return nil, err
	}
	mutate(&c)
	s.byID[id] = &c
	out := c
	return &out, nil
}
