package models

import (
	"net/http"
	"time"

	"truconn/pkg/domain"
)

// EndpointClass groups routes that share a request budget.
type EndpointClass string

const (
	ClassRead  EndpointClass = "read"
	ClassWrite EndpointClass = "write"
)

// ClassFor maps safe methods to the read budget and everything else to write.
func ClassFor(method string) EndpointClass {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ClassRead
	default:
		return ClassWrite
	}
}

// Limit is a request budget over a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one limiter check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set when denied
	Degraded   bool
}

// Key scopes a bucket to one principal and endpoint class.
func Key(p domain.Principal, class EndpointClass) string {
	return "ratelimit:" + string(p.Role) + ":" + p.ID.String() + ":" + string(class)
}
