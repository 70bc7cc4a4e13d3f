package scoring

import (
	"fmt"
	"strings"
	"time"

	"truconn/internal/compliance/models"
	consentmodels "truconn/internal/consent/models"
	"truconn/pkg/domain"
)

const (
	retentionLimit         = 365 * 24 * time.Hour
	requestWindow          = 30 * 24 * time.Hour
	excessiveRequestCount  = 100
	revokedRequestCount    = 10
	minimizationCategories = 3.5
)

var vaguePurposes = map[string]bool{
	"general":  true,
	"testing":  true,
	"research": true,
	"other":    true,
}

// Snapshot is the read-only state the anomaly rules run over.
type Snapshot struct {
	Now          time.Time
	Consent      *consentmodels.OrganizationSnapshot
	Unauthorized int // audit entries without a live grant
}

type RuleConfig struct {
	VaguePurposeMinLength int
}

// Finding is one rule firing; it becomes a Violation unless an unresolved
// one of the same issue type already exists.
type Finding struct {
	IssueType   models.IssueType
	Severity    models.Severity
	Description string
}

type rule func(RuleConfig, Snapshot) (Finding, bool)

var rules = []rule{
	unauthorizedAccess,
	accessControl,
	revocationHandling,
	purposeLimitation,
	retentionPolicy,
	excessiveRequests,
	dataMinimization,
}

// Evaluate runs every rule in a fixed order.
func Evaluate(cfg RuleConfig, snap Snapshot) []Finding {
	var out []Finding
	for _, r := range rules {
		if f, ok := r(cfg, snap); ok {
			out = append(out, f)
		}
	}
	return out
}

func unauthorizedAccess(_ RuleConfig, snap Snapshot) (Finding, bool) {
	if snap.Unauthorized == 0 {
		return Finding{}, false
	}
	return Finding{
		IssueType:   models.IssueUnauthorizedAccess,
		Severity:    models.SeverityCritical,
		Description: fmt.Sprintf("%d access log entries without an active grant", snap.Unauthorized),
	}, true
}

// accessControl flags organizations whose requests citizens keep turning
// down or withdrawing.
func accessControl(_ RuleConfig, snap Snapshot) (Finding, bool) {
	n := 0
	for _, r := range snap.Consent.Requests {
		if r.Status == consentmodels.RequestStatusRevoked {
			n++
		}
	}
	if n <= revokedRequestCount {
		return Finding{}, false
	}
	return Finding{
		IssueType:   models.IssueAccessControl,
		Severity:    models.SeverityCritical,
		Description: fmt.Sprintf("%d revoked consent requests", n),
	}, true
}

type coverKey struct {
	citizen  domain.CitizenID
	category domain.DataCategory
}

// revocationHandling cannot fire through the consent service; it catches
// stores modified behind its back.
func revocationHandling(_ RuleConfig, snap Snapshot) (Finding, bool) {
	covered := make(map[coverKey]bool, len(snap.Consent.Consents))
	for _, c := range snap.Consent.Consents {
		if c.Allowed {
			covered[coverKey{c.CitizenID, c.Category}] = true
		}
	}
	n := 0
	for _, g := range snap.Consent.Grants {
		if g.IsActive() && !covered[coverKey{g.CitizenID, g.DataType}] {
			n++
		}
	}
	if n == 0 {
		return Finding{}, false
	}
	return Finding{
		IssueType:   models.IssueRevocationHandling,
		Severity:    models.SeverityCritical,
		Description: fmt.Sprintf("%d active grants without a covering consent", n),
	}, true
}

// IsVaguePurpose reports purposes too generic to limit processing.
func IsVaguePurpose(purpose string, minLength int) bool {
	p := strings.ToLower(strings.TrimSpace(purpose))
	return vaguePurposes[p] || len([]rune(p)) < minLength
}

func purposeLimitation(cfg RuleConfig, snap Snapshot) (Finding, bool) {
	n := 0
	for _, g := range snap.Consent.Grants {
		if g.IsActive() && IsVaguePurpose(g.Purpose, cfg.VaguePurposeMinLength) {
			n++
		}
	}
	for _, r := range snap.Consent.Requests {
		if r.Status == consentmodels.RequestStatusPending && IsVaguePurpose(r.Purpose, cfg.VaguePurposeMinLength) {
			n++
		}
	}
	if n == 0 {
		return Finding{}, false
	}
	return Finding{
		IssueType:   models.IssuePurposeLimitation,
		Severity:    models.SeverityHigh,
		Description: fmt.Sprintf("%d grants or pending requests with a vague purpose", n),
	}, true
}

func retentionPolicy(_ RuleConfig, snap Snapshot) (Finding, bool) {
	cutoff := snap.Now.Add(-retentionLimit)
	n := 0
	for _, g := range snap.Consent.Grants {
		if g.IsActive() && g.CreatedAt.Before(cutoff) {
			n++
		}
	}
	if n == 0 {
		return Finding{}, false
	}
	return Finding{
		IssueType:   models.IssueRetentionPolicy,
		Severity:    models.SeverityMedium,
		Description: fmt.Sprintf("%d active grants older than 365 days", n),
	}, true
}

func excessiveRequests(_ RuleConfig, snap Snapshot) (Finding, bool) {
	since := snap.Now.Add(-requestWindow)
	n := 0
	for _, r := range snap.Consent.Requests {
		if !r.RequestedAt.Before(since) {
			n++
		}
	}
	if n <= excessiveRequestCount {
		return Finding{}, false
	}
	return Finding{
		IssueType:   models.IssueExcessiveRequests,
		Severity:    models.SeverityMedium,
		Description: fmt.Sprintf("%d consent requests in the last 30 days", n),
	}, true
}

func dataMinimization(_ RuleConfig, snap Snapshot) (Finding, bool) {
	perCitizen := map[domain.CitizenID]map[domain.DataCategory]bool{}
	for _, g := range snap.Consent.Grants {
		if !g.IsActive() {
			continue
		}
		cats := perCitizen[g.CitizenID]
		if cats == nil {
			cats = map[domain.DataCategory]bool{}
			perCitizen[g.CitizenID] = cats
		}
		cats[g.DataType] = true
	}
	if len(perCitizen) == 0 {
		return Finding{}, false
	}
	total := 0
	for _, cats := range perCitizen {
		total += len(cats)
	}
	avg := float64(total) / float64(len(perCitizen))
	if avg < minimizationCategories {
		return Finding{}, false
	}
	return Finding{
		IssueType:   models.IssueDataMinimization,
		Severity:    models.SeverityMedium,
		Description: fmt.Sprintf("average of %.1f data categories per citizen", avg),
	}, true
}

// ExpiringConsents counts allowed consents reaching expiry within window.
func ExpiringConsents(consents []*consentmodels.Consent, now time.Time, window time.Duration) int {
	n := 0
	for _, c := range consents {
		if c.ExpiringWithin(now, window) {
			n++
		}
	}
	return n
}
