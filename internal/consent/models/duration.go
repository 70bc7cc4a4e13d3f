package models

import (
	"strconv"
	"strings"
	"time"
)

// Duration values with special meaning. Anything else that does not parse
// as "<n> <unit>" is free text and never expires.
const (
	DurationOngoing = "Ongoing"
	DurationNone    = "-"
)

// ConsentDuration is a calendar span parsed from "<n> day(s)|week(s)|month(s)|year(s)".
type ConsentDuration struct {
	Days   int
	Months int
	Years  int
}

// AddTo applies the span using calendar arithmetic.
func (d ConsentDuration) AddTo(t time.Time) time.Time {
	return t.AddDate(d.Years, d.Months, d.Days)
}

// ParseDuration parses a stated consent duration. ok is false for
// Ongoing, "-", empty, and free text.
func ParseDuration(s string) (ConsentDuration, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 2 {
		return ConsentDuration{}, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return ConsentDuration{}, false
	}
	switch strings.TrimSuffix(fields[1], "s") {
	case "day":
		return ConsentDuration{Days: n}, true
	case "week":
		return ConsentDuration{Days: 7 * n}, true
	case "month":
		return ConsentDuration{Months: n}, true
	case "year":
		return ConsentDuration{Years: n}, true
	default:
		return ConsentDuration{}, false
	}
}
