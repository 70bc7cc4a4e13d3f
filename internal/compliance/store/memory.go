package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"truconn/internal/compliance/models"
	"truconn/pkg/domain"
	"truconn/pkg/platform/sentinel"
)

// InMemory keeps violations for development and tests.
type InMemory struct {
	mu   sync.RWMutex
	byID map[domain.ViolationID]*models.Violation
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[domain.ViolationID]*models.Violation)}
}

func (s *InMemory) Create(_ context.Context, v *models.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byID[v.ID]; taken {
		return fmt.Errorf("violation %s: %w", v.ID, sentinel.ErrConflict)
	}
	c := *v
	s.byID[v.ID] = &c
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.ViolationID) (*models.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *v
	return &c, nil
}

// List returns matching violations, newest detection first.
func (s *InMemory) List(_ context.Context, filter models.ViolationFilter) ([]*models.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Violation, 0)
	for _, v := range s.byID {
		if filter.Matches(v) {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	return out, nil
}

// Execute runs validate then mutate under the store lock and persists the result.
func (s *InMemory) Execute(_ context.Context, id domain.ViolationID, validate func(*models.Violation) error, mutate func(*models.Violation)) (*models.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *v
	if err := validate(&c); err != nil {
		return nil, err
	}
	mutate(&c)
	s.byID[id] = &c
	out := c
	return &out, nil
}
