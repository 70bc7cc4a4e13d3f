package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truconn/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

func TestConsentApply_DenialClearsOrganizations(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	orgA, orgB := domain.NewOrganizationID(), domain.NewOrganizationID()
	c := NewDeniedConsent(domain.NewCitizenID(), domain.CategoryHealth, now)
	c.AddOrganization(orgA, now)
	c.AddOrganization(orgB, now)
	require.True(t, c.Allowed)
	require.Len(t, c.Organizations, 2)

	// Organizations passed alongside a denial are ignored.
	removed := c.Apply(ConsentUpdate{Allowed: false, Organizations: ptr([]domain.OrganizationID{orgA})}, now)

	assert.False(t, c.Allowed)
	assert.Empty(t, c.Organizations)
	assert.ElementsMatch(t, []domain.OrganizationID{orgA, orgB}, removed)
}

func TestConsentApply_ExplicitRemoval(t *testing.T) {
	now := time.Now()
	orgA, orgB := domain.NewOrganizationID(), domain.NewOrganizationID()
	c := NewDeniedConsent(domain.NewCitizenID(), domain.CategoryFinancial, now)
	c.Apply(ConsentUpdate{Allowed: true, Organizations: ptr([]domain.OrganizationID{orgA, orgB, orgA})}, now)
	require.Len(t, c.Organizations, 2, "duplicates collapse")

	removed := c.Apply(ConsentUpdate{Allowed: true, Organizations: ptr([]domain.OrganizationID{orgB})}, now)
	assert.Equal(t, []domain.OrganizationID{orgA}, removed)
	assert.True(t, c.Covers(orgB))
	assert.False(t, c.Covers(orgA))
}

func TestConsentApply_KeepsUnspecifiedFields(t *testing.T) {
	now := time.Now()
	org := domain.NewOrganizationID()
	c := NewDeniedConsent(domain.NewCitizenID(), domain.CategoryIdentity, now)
	c.Apply(ConsentUpdate{Allowed: true, Organizations: ptr([]domain.OrganizationID{org}), Duration: ptr("6 months"), Details: ptr("kyc")}, now)

	removed := c.Apply(ConsentUpdate{Allowed: true}, now.Add(time.Hour))
	assert.Empty(t, removed)
	assert.True(t, c.Covers(org))
	assert.Equal(t, "6 months", c.Duration)
	assert.Equal(t, "kyc", c.Details)
	assert.Equal(t, now.Add(time.Hour), c.RenewedAt, "allowing renews")
}

func TestConsentExpiry(t *testing.T) {
	renewed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Consent{Allowed: true, Duration: "1 month", RenewedAt: renewed}

	exp, ok := c.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), exp)

	window := 30 * 24 * time.Hour
	assert.True(t, c.ExpiringWithin(renewed.AddDate(0, 0, 5), window))
	assert.False(t, c.ExpiringWithin(renewed.AddDate(0, 0, -5), window))
	assert.True(t, c.ExpiringWithin(renewed.AddDate(0, 3, 0), window), "already expired counts")

	c.Allowed = false
	assert.False(t, c.ExpiringWithin(renewed.AddDate(0, 0, 5), window), "denied consents do not expire")

	c.Allowed = true
	c.Duration = DurationOngoing
	assert.False(t, c.ExpiringWithin(renewed.AddDate(5, 0, 0), window))
}

func TestParseDuration(t *testing.T) {
	cases := map[string]struct {
		want ConsentDuration
		ok   bool
	}{
		"1 day":        {ConsentDuration{Days: 1}, true},
		"3 Weeks":      {ConsentDuration{Days: 21}, true},
		" 6 months ":   {ConsentDuration{Months: 6}, true},
		"2 years":      {ConsentDuration{Years: 2}, true},
		"Ongoing":      {ConsentDuration{}, false},
		"-":            {ConsentDuration{}, false},
		"":             {ConsentDuration{}, false},
		"0 days":       {ConsentDuration{}, false},
		"-3 days":      {ConsentDuration{}, false},
		"until I ask":  {ConsentDuration{}, false},
		"5 fortnights": {ConsentDuration{}, false},
	}
	for in, tc := range cases {
		got, ok := ParseDuration(in)
		assert.Equal(t, tc.ok, ok, in)
		assert.Equal(t, tc.want, got, in)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	org := domain.NewOrganizationID()
	c := &Consent{Allowed: true, Organizations: []domain.OrganizationID{org}}
	cp := c.Clone()
	cp.Organizations[0] = domain.NewOrganizationID()
	assert.Equal(t, org, c.Organizations[0])
}
