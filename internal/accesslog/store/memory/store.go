// Package memory keeps the access log in an append-only slice. Readers
// load a published snapshot and never wait for writers.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"truconn/internal/accesslog/models"
	"truconn/pkg/domain"
)

type Store struct {
	mu      sync.Mutex // serializes writers only
	entries atomic.Pointer[[]*models.AuditEntry]
}

func New() *Store {
	s := &Store{}
	empty := make([]*models.AuditEntry, 0, 64)
	s.entries.Store(&empty)
	return s
}

// Append assigns the next id and clamps DateTime so it is never earlier
// than the previous entry.
func (s *Store) Append(_ context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.entries.Load()
	e := *entry
	e.ID = int64(len(cur)) + 1
	if n := len(cur); n > 0 && e.DateTime.Before(cur[n-1].DateTime) {
		e.DateTime = cur[n-1].DateTime
	}
	// Readers hold the old header; writes past its length are invisible to them.
	next := append(cur, &e)
	s.entries.Store(&next)

	*entry = e
	return nil
}

func (s *Store) Head(_ context.Context) (int64, error) {
	return int64(len(*s.entries.Load())), nil
}

// Page returns up to limit entries with id < before, newest first.
func (s *Store) Page(_ context.Context, filter models.Filter, before int64, limit int) ([]*models.AuditEntry, error) {
	snap := *s.entries.Load()
	end := len(snap)
	if before > 0 && int(before-1) < end {
		end = int(before - 1)
	}
	out := make([]*models.AuditEntry, 0, limit)
	for i := end - 1; i >= 0 && len(out) < limit; i-- {
		if filter.Matches(snap[i]) {
			cp := *snap[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CountByOrganization(_ context.Context, orgID domain.OrganizationID) (models.Counts, error) {
	var c models.Counts
	for _, e := range *s.entries.Load() {
		if e.OrganizationID != orgID {
			continue
		}
		c.Total++
		if !e.Authorized {
			c.Unauthorized++
		}
	}
	return c, nil
}
