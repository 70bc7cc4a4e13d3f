package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"truconn/internal/ratelimit/models"
	"truconn/pkg/domain"
	"truconn/pkg/platform/httputil"
	request "truconn/pkg/platform/middleware/request"
	"truconn/pkg/requestcontext"
)

type RateLimiter interface {
	Check(ctx context.Context, principal domain.Principal, class models.EndpointClass) (*models.Result, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns the middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{limiter: limiter, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

type exceededResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

// RateLimitPrincipal limits the authenticated principal; it must run after
// auth.RequireAuth. The class follows the HTTP method. Limiter errors fail
// open so an outage of the limit store never takes the API down.
func (m *Middleware) RateLimitPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		principal := requestcontext.Principal(ctx)
		if principal.IsZero() {
			next.ServeHTTP(w, r)
			return
		}

		result, err := m.limiter.Check(ctx, principal, models.ClassFor(r.Method))
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check rate limit",
				"error", err,
				"role", principal.Role,
				"request_id", request.GetRequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
				Error:            "rate_limit_exceeded",
				ErrorDescription: "Too many requests. Please try again later.",
				RetryAfter:       result.RetryAfter,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil || result.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}
