// Package strings holds small helpers for list-valued request fields.
package strings

import (
	"strings"
)

// Canonical trims and lowercases each value, drops blanks and keeps the first
// occurrence of each. Uuid text from clients arrives in either case, so
// "ABC" and " abc" name the same organization.
func Canonical(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
