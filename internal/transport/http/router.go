// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and never pick failure status codes themselves; that is
// shared.WriteError's job.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flock/internal/platform/health"
	"flock/internal/platform/metrics"
	"flock/internal/platform/middleware"
	authmw "flock/internal/platform/middleware/auth"
	dErrors "flock/pkg/domain-errors"
)

// RouterConfig carries the wired dependencies for the HTTP surface.
type RouterConfig struct {
	Logger   *slog.Logger
	Verifier authmw.TokenVerifier
	Roles    *RoleHandler
	Accounts *AccountHandler

	// Audit, when set, mounts the audit trail read endpoint.
	Audit *AuditHandler

	// Health serves the probe endpoints. Nil mounts a handler with no
	// dependency checks.
	Health *health.Handler

	// Metrics, when set, records per-endpoint latency and auth failures.
	Metrics *metrics.Metrics

	// Timeout bounds request handling end to end.
	Timeout time.Duration
}

// NewRouter wires middleware and endpoints. /signup and the probe and
// metrics endpoints are public; every other route requires a verified bearer
// token.
func NewRouter(cfg RouterConfig) http.Handler {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	probes := cfg.Health
	if probes == nil {
		probes = health.New()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	probes.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		cfg.Accounts.RegisterPublic(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(cfg.Verifier, cfg.Logger, cfg.Metrics))
		r.Use(middleware.ContentTypeJSON)
		cfg.Roles.Register(r)
		cfg.Accounts.Register(r)
		if cfg.Audit != nil {
			cfg.Audit.Register(r)
		}
	})

	return r
}

// decodeJSON decodes the request body, rejecting unknown fields so typos in
// admin tooling fail loudly instead of silently dropping input.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "malformed JSON body")
	}
	return nil
}
