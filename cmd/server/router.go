package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accessloghandler "truconn/internal/accesslog/handler"
	compliancehandler "truconn/internal/compliance/handler"
	consenthandler "truconn/internal/consent/handler"
	orghandler "truconn/internal/organization/handler"
	"truconn/pkg/platform/httputil"
	"truconn/pkg/platform/middleware/auth"
	request "truconn/pkg/platform/middleware/request"
	"truconn/pkg/platform/middleware/requesttime"
)

func newRouter(a *app, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(request.Latency(a.httpMetrics, routePattern))

	r.Get("/healthz", a.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(a.cfg.Server.RequestTimeout))
		r.Use(request.ContentTypeJSON)
		r.Use(requesttime.Middleware)
		r.Use(auth.RequireAuth(a.tokens, log))
		r.Use(a.rateLimit.RateLimitPrincipal)

		orghandler.New(a.organizations, log).Register(r)
		consenthandler.New(a.consent, log).Register(r)
		accessloghandler.New(a.accessLog, log).Register(r)
		compliancehandler.New(a.compliance, log).Register(r)
	})
	return r
}

// routePattern keeps metric cardinality bounded by reporting the matched
// chi pattern instead of the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func writeHealth(w http.ResponseWriter, status int, body map[string]string) {
	httputil.WriteJSON(w, status, body)
}
