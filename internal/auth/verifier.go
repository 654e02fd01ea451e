package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	authmetrics "flock/internal/auth/metrics"
	"flock/internal/idp"
	dErrors "flock/pkg/domain-errors"
)

// ErrUnauthenticated is the only error the verifier returns to callers.
// Which internal check failed is logged at debug level but never exposed,
// so the response leaks nothing about the rejection reason.
var ErrUnauthenticated = dErrors.New(dErrors.CodeUnauthorized, "unauthenticated")

// TrustConfig is the static trust anchor for inbound tokens. It is built once
// at startup and read-only afterwards.
type TrustConfig struct {
	// Issuer must match the token's iss claim exactly. A substring or
	// contains relation is not a trust relation: either side could embed
	// the other inside an attacker-controlled value.
	Issuer string

	// RequiredScopes must all appear in the token's space-delimited scope
	// claim as whole tokens. Defaults to openid and email.
	RequiredScopes []string
}

// Clock supplies the verifier's notion of now, injectable for tests.
type Clock func() time.Time

// ProfileFetcher retrieves the subject's profile from the IdP using the
// subject's own bearer token.
type ProfileFetcher interface {
	FetchUserProfile(ctx context.Context, accessToken string) (*idp.UserProfile, error)
}

// Verifier applies the token acceptance policy as an ordered
// short-circuiting pipeline. It is stateless and safe for concurrent use.
type Verifier struct {
	codec    *Codec
	trust    TrustConfig
	now      Clock
	profiles ProfileFetcher
	logger   *slog.Logger
	metrics  *authmetrics.Metrics
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the time source.
func WithClock(now Clock) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLogger sets the logger used for rejection diagnostics.
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithProfileFetcher enables the VerifyProfile variant.
func WithProfileFetcher(f ProfileFetcher) VerifierOption {
	return func(v *Verifier) {
		v.profiles = f
	}
}

// WithMetrics records verification outcomes.
func WithMetrics(m *authmetrics.Metrics) VerifierOption {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// NewVerifier builds a Verifier over the given codec and trust configuration.
func NewVerifier(codec *Codec, trust TrustConfig, opts ...VerifierOption) *Verifier {
	if len(trust.RequiredScopes) == 0 {
		trust.RequiredScopes = []string{"openid", "email"}
	}
	v := &Verifier{
		codec:  codec,
		trust:  trust,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the acceptance pipeline. The first failing check rejects with
// ErrUnauthenticated and no further checks are performed. No partial
// Principal is ever returned.
func (v *Verifier) Verify(ctx context.Context, token string) (*Principal, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		return nil, v.reject(ctx, "token decode failed", err)
	}

	if claims.Issuer != v.trust.Issuer {
		return nil, v.reject(ctx, "token issuer does not match trusted issuer", nil)
	}

	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, v.reject(ctx, "token missing temporal claims", nil)
	}

	now := v.now()

	if claims.IssuedAt.Time.After(now) {
		return nil, v.reject(ctx, "token issued in the future", nil)
	}

	if !claims.ExpiresAt.Time.After(now) {
		return nil, v.reject(ctx, "token expired", nil)
	}

	if !claims.IssuedAt.Time.Before(claims.ExpiresAt.Time) {
		return nil, v.reject(ctx, "token issued at or after its expiry", nil)
	}

	scopes := strings.Fields(claims.Scope)
	for _, required := range v.trust.RequiredScopes {
		if !containsScope(scopes, required) {
			return nil, v.reject(ctx, "token missing required scope", nil)
		}
	}

	if v.metrics != nil {
		v.metrics.IncTokenAccepted()
	}
	return &Principal{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Scopes:    scopes,
		RawToken:  token,
	}, nil
}

// VerifyProfile runs Verify and then fetches the subject's profile from the
// IdP with the same bearer token, requiring email and email_verified to be
// present. Account-management flows use this variant; plain request gating
// uses Verify.
func (v *Verifier) VerifyProfile(ctx context.Context, token string) (*Principal, error) {
	principal, err := v.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if v.profiles == nil {
		return nil, v.reject(ctx, "profile verification requested without a profile fetcher", nil)
	}

	profile, err := v.profiles.FetchUserProfile(ctx, token)
	if err != nil {
		return nil, v.reject(ctx, "profile fetch failed", err)
	}
	if profile == nil || profile.Email == nil || profile.EmailVerified == nil {
		return nil, v.reject(ctx, "profile missing email claims", nil)
	}

	principal.Email = *profile.Email
	principal.EmailVerified = *profile.EmailVerified
	return principal, nil
}

// reject logs the real failure reason and returns the opaque error.
func (v *Verifier) reject(ctx context.Context, reason string, err error) error {
	if err != nil {
		v.logger.DebugContext(ctx, "token rejected", "reason", reason, "error", err)
	} else {
		v.logger.DebugContext(ctx, "token rejected", "reason", reason)
	}
	if v.metrics != nil {
		v.metrics.IncTokenRejected()
	}
	return ErrUnauthenticated
}

// containsScope checks whole-token membership; substring matches are not
// scope grants.
func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
