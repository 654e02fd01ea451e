package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"flock/internal/auth"
	"flock/internal/platform/metrics"
	"flock/internal/platform/middleware"
)

// TokenVerifier gates protected requests. Implementations must be safe for
// unbounded concurrent use.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Principal, error)
}

// writeUnauthenticated writes the generic rejection response. The body is the
// same no matter which internal check failed.
func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"unauthorized","error_description":"%s"}`, "Authentication required"))
}

// RequireAuth returns middleware that verifies the bearer token and stores
// the resulting Principal in the request context. Rejections carry no detail
// about which check failed. m may be nil.
func RequireAuth(verifier TokenVerifier, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request, reason string) {
		ctx := r.Context()
		logger.WarnContext(ctx, "unauthorized access - "+reason,
			"request_id", middleware.GetRequestID(ctx),
			"client_ip", middleware.ClientIP(r),
		)
		if m != nil {
			m.IncAuthFailures()
		}
		writeUnauthenticated(w)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				reject(w, r, "missing bearer token")
				return
			}

			principal, err := verifier.Verify(ctx, token)
			if err != nil {
				reject(w, r, "token rejected")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, principal)))
		})
	}
}
