package domain

import (
	"sort"
	"strings"

	dErrors "truconn/pkg/domain-errors"
)

// DataCategory is a class of personal data a citizen can grant or deny.
// Invariant: the value must be one of the supported categories.
//
// Usage: construct via ParseDataCategory at trust boundaries; direct casting
// bypasses validation.
type DataCategory string

const (
	CategoryBiometric DataCategory = "Biometric"
	CategoryContact   DataCategory = "Contact"
	CategoryFinancial DataCategory = "Financial"
	CategoryHealth    DataCategory = "Health"
	CategoryIdentity  DataCategory = "Identity"
)

var validCategories = map[DataCategory]bool{
	CategoryBiometric: true,
	CategoryContact:   true,
	CategoryFinancial: true,
	CategoryHealth:    true,
	CategoryIdentity:  true,
}

// ParseDataCategory accepts the canonical spelling case-insensitively.
//
// Errors: returns CodeInvalidCategory when the value is empty or unsupported.
func ParseDataCategory(s string) (DataCategory, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidCategory, "category cannot be empty")
	}
	for c := range validCategories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInvalidCategory, "unsupported data category: "+s)
}

func (c DataCategory) IsValid() bool {
	return validCategories[c]
}

func (c DataCategory) String() string {
	return string(c)
}

// AllCategories returns every supported category in canonical (lexical) order.
func AllCategories() []DataCategory {
	out := make([]DataCategory, 0, len(validCategories))
	for c := range validCategories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
