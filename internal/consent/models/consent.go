package models

import (
	"slices"
	"time"

	"truconn/pkg/domain"
)

// Citizen marks that a consent registry exists for an identity.
type Citizen struct {
	ID          domain.CitizenID `json:"id"`
	OnboardedAt time.Time        `json:"onboarded_at"`
}

// Consent is a citizen's standing permission (or denial) for one data category.
//
// Invariants:
//   - Allowed=false implies Organizations is empty
//   - At most one Consent per (CitizenID, Category)
//   - Never deleted; denial is Allowed=false
type Consent struct {
	ID            domain.ConsentID        `json:"id"`
	CitizenID     domain.CitizenID        `json:"citizen_id"`
	Category      domain.DataCategory     `json:"category"`
	Allowed       bool                    `json:"allowed"`
	Organizations []domain.OrganizationID `json:"organizations"`
	Duration      string                  `json:"duration"`
	Details       string                  `json:"details"`
	RenewedAt     time.Time               `json:"renewed_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// NewDeniedConsent builds the default row created at onboarding or on first request approval.
func NewDeniedConsent(citizenID domain.CitizenID, category domain.DataCategory, now time.Time) *Consent {
	return &Consent{
		ID:            domain.NewConsentID(),
		CitizenID:     citizenID,
		Category:      category,
		Organizations: []domain.OrganizationID{},
		RenewedAt:     now,
		UpdatedAt:     now,
	}
}

// Covers reports whether the consent currently authorizes the organization.
func (c *Consent) Covers(org domain.OrganizationID) bool {
	return c.Allowed && slices.Contains(c.Organizations, org)
}

// ConsentUpdate carries the optional fields of a setConsent call.
// Nil pointers leave the current value untouched.
type ConsentUpdate struct {
	Allowed       bool
	Organizations *[]domain.OrganizationID
	Duration      *string
	Details       *string
}

// Apply mutates the consent and returns the organizations that lost coverage.
// Denial always clears every organization. Granting renews the consent.
func (c *Consent) Apply(u ConsentUpdate, now time.Time) (removed []domain.OrganizationID) {
	next := c.Organizations
	if u.Organizations != nil {
		next = NormalizeOrganizations(*u.Organizations)
	}
	if !u.Allowed {
		next = []domain.OrganizationID{}
	}
	for _, org := range c.Organizations {
		if !slices.Contains(next, org) {
			removed = append(removed, org)
		}
	}

	c.Allowed = u.Allowed
	c.Organizations = next
	if u.Duration != nil {
		c.Duration = *u.Duration
	}
	if u.Details != nil {
		c.Details = *u.Details
	}
	if u.Allowed {
		c.RenewedAt = now
	}
	c.UpdatedAt = now
	return removed
}

// AddOrganization allows the category and adds org to its coverage.
func (c *Consent) AddOrganization(org domain.OrganizationID, now time.Time) {
	orgs := append(slices.Clone(c.Organizations), org)
	c.Apply(ConsentUpdate{Allowed: true, Organizations: &orgs}, now)
}

// ExpiresAt returns the expiry derived from Duration, if it parses.
func (c *Consent) ExpiresAt() (time.Time, bool) {
	d, ok := ParseDuration(c.Duration)
	if !ok {
		return time.Time{}, false
	}
	return d.AddTo(c.RenewedAt), true
}

// ExpiringWithin reports whether an allowed consent reaches its expiry
// within window of now, including consents already past it.
func (c *Consent) ExpiringWithin(now time.Time, window time.Duration) bool {
	if !c.Allowed {
		return false
	}
	exp, ok := c.ExpiresAt()
	if !ok {
		return false
	}
	return !exp.After(now.Add(window))
}

func (c *Consent) Clone() *Consent {
	out := *c
	out.Organizations = slices.Clone(c.Organizations)
	if out.Organizations == nil {
		out.Organizations = []domain.OrganizationID{}
	}
	return &out
}

// NormalizeOrganizations removes nil and duplicate ids and sorts the set.
func NormalizeOrganizations(in []domain.OrganizationID) []domain.OrganizationID {
	out := make([]domain.OrganizationID, 0, len(in))
	for _, org := range in {
		if org.IsNil() || slices.Contains(out, org) {
			continue
		}
		out = append(out, org)
	}
	slices.SortFunc(out, func(a, b domain.OrganizationID) int {
		switch as, bs := a.String(), b.String(); {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	})
	return out
}
