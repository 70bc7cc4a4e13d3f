package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truconn/internal/accesslog/models"
	"truconn/pkg/domain"
)

func entryAt(org domain.OrganizationID, at time.Time) *models.AuditEntry {
	return &models.AuditEntry{
		OrganizationID: org,
		CitizenID:      domain.NewCitizenID(),
		DateTime:       at,
		Purpose:        "billing reconciliation",
		AccessType:     models.AccessRead,
	}
}

func TestAppendAssignsIDsAndClampsTime(t *testing.T) {
	ctx := context.Background()
	s := New()
	org := domain.NewOrganizationID()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := entryAt(org, t0)
	require.NoError(t, s.Append(ctx, first))
	late := entryAt(org, t0.Add(-time.Hour))
	require.NoError(t, s.Append(ctx, late))

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), late.ID)
	assert.Equal(t, t0, late.DateTime, "an earlier clock must not reorder the trail")

	head, err := s.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), head)
}

func TestPageNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	org := domain.NewOrganizationID()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, s.Append(ctx, entryAt(org, t0.Add(time.Duration(i)*time.Minute))))
	}

	page, err := s.Page(ctx, models.Filter{}, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(5), page[0].ID)
	assert.Equal(t, int64(4), page[1].ID)

	page, err = s.Page(ctx, models.Filter{}, page[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(3), page[0].ID)
	assert.Equal(t, int64(1), page[2].ID)

	t.Run("returns copies", func(t *testing.T) {
		page[0].Purpose = "mutated"
		again, err := s.Page(ctx, models.Filter{}, 4, 1)
		require.NoError(t, err)
		assert.Equal(t, "billing reconciliation", again[0].Purpose)
	})
}

func TestCountByOrganization(t *testing.T) {
	ctx := context.Background()
	s := New()
	org := domain.NewOrganizationID()
	now := time.Now()

	ok := entryAt(org, now)
	ok.Authorized = true
	require.NoError(t, s.Append(ctx, ok))
	require.NoError(t, s.Append(ctx, entryAt(org, now)))
	require.NoError(t, s.Append(ctx, entryAt(domain.NewOrganizationID(), now)))

	c, err := s.CountByOrganization(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, models.Counts{Total: 2, Unauthorized: 1}, c)
}

func TestConcurrentAppendsStayOrdered(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			org := domain.NewOrganizationID()
			for i := range perWriter {
				// Skewed clocks across writers.
				at := base.Add(time.Duration(i-w) * time.Second)
				assert.NoError(t, s.Append(ctx, entryAt(org, at)))
			}
		}()
	}

	// Readers run alongside writers and must only see a growing log.
	var last int64
	for range 100 {
		head, err := s.Head(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, head, last)
		last = head
	}
	wg.Wait()

	all, err := s.Page(ctx, models.Filter{}, 0, writers*perWriter)
	require.NoError(t, err)
	require.Len(t, all, writers*perWriter)
	for i := 1; i < len(all); i++ {
		assert.Equal(t, all[i-1].ID-1, all[i].ID)
		assert.False(t, all[i-1].DateTime.Before(all[i].DateTime))
	}
}
