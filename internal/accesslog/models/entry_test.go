package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truconn/pkg/domain"
)

func TestParseAccessType(t *testing.T) {
	at, err := ParseAccessType(" READ ")
	require.NoError(t, err)
	assert.Equal(t, AccessRead, at)

	_, err = ParseAccessType("delete")
	assert.Error(t, err)
}

func TestFilterMatches(t *testing.T) {
	org := domain.NewOrganizationID()
	citizen := domain.NewCitizenID()
	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	entry := &AuditEntry{
		OrganizationID:   org,
		OrganizationName: "Metro Clinic",
		CitizenID:        citizen,
		DateTime:         at,
		Purpose:          "Annual checkup",
	}

	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"org match", Filter{OrganizationID: &org}, true},
		{"citizen mismatch", Filter{CitizenID: ptr(domain.NewCitizenID())}, false},
		{"text on name", Filter{Text: "metro"}, true},
		{"text on purpose", Filter{Text: "CHECKUP"}, true},
		{"text miss", Filter{Text: "bank"}, false},
		{"inside range", Filter{From: at.Add(-time.Hour), To: at.Add(time.Hour)}, true},
		{"before range", Filter{From: at.Add(time.Minute)}, false},
		{"after range", Filter{To: at.Add(-time.Minute)}, false},
		{"and semantics", Filter{OrganizationID: &org, Text: "bank"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(entry))
		})
	}
}

func TestUnauthorizedRatio(t *testing.T) {
	assert.Zero(t, Counts{}.UnauthorizedRatio())
	assert.InDelta(t, 0.25, Counts{Total: 4, Unauthorized: 1}.UnauthorizedRatio(), 1e-9)
}

func ptr[T any](v T) *T { return &v }
