package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"flock/internal/idp"
	dErrors "flock/pkg/domain-errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const trustedIssuer = "https://tenant.idp.example.com/"

type tokenParams struct {
	issuer string
	iat    time.Time
	exp    time.Time
	scope  string
	sub    string
	email  string
}

// signToken mints an RS256 token for the verifier under test.
func signToken(t *testing.T, key *rsa.PrivateKey, p tokenParams) string {
	t.Helper()
	claims := Claims{
		Scope: p.scope,
		Email: p.email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   p.sub,
			Audience:  jwt.ClaimStrings{"https://api.flock.example.com"},
			ExpiresAt: jwt.NewNumericDate(p.exp),
			IssuedAt:  jwt.NewNumericDate(p.iat),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func newTestVerifier(t *testing.T, now time.Time, opts ...VerifierOption) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	codec, err := NewCodec(pemBytes)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]VerifierOption{
		WithClock(func() time.Time { return now }),
		WithLogger(logger),
	}, opts...)
	return NewVerifier(codec, TrustConfig{Issuer: trustedIssuer}, opts...), key
}

func validParams(now time.Time) tokenParams {
	return tokenParams{
		issuer: trustedIssuer,
		iat:    now.Add(-time.Minute),
		exp:    now.Add(time.Hour),
		scope:  "openid email profile",
		sub:    "idp|user1",
	}
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, key := newTestVerifier(t, now)

	p := validParams(now)
	p.email = "user@example.com"
	principal, err := v.Verify(context.Background(), signToken(t, key, p))
	require.NoError(t, err)
	require.Equal(t, "idp|user1", principal.SubjectID)
	require.Equal(t, "user@example.com", principal.Email)
	require.True(t, principal.HasScope("openid"))
	require.True(t, principal.HasScope("profile"))
	require.False(t, principal.HasScope("admin"))
	require.NotEmpty(t, principal.RawToken)
}

func TestVerifyRejectsGarbageToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, _ := newTestVerifier(t, now)

	_, err := v.Verify(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyRejectsWrongSigningKey(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, _ := newTestVerifier(t, now)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), signToken(t, otherKey, validParams(now)))
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyRejectsUnexpectedAlgorithm(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, _ := newTestVerifier(t, now)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    trustedIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
	}).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyRequiresExactIssuerMatch(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, key := newTestVerifier(t, now)

	// Substring relations in either direction are not trust relations.
	for _, issuer := range []string{
		"tenant.idp.example.com",
		"https://tenant.idp.example.com",
		"https://tenant.idp.example.com/extra/",
		"https://evil.example.com/?https://tenant.idp.example.com/",
		"",
	} {
		p := validParams(now)
		p.issuer = issuer
		_, err := v.Verify(context.Background(), signToken(t, key, p))
		require.ErrorIs(t, err, ErrUnauthenticated, "issuer %q must be rejected", issuer)
	}
}

func TestVerifyTemporalChecks(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, key := newTestVerifier(t, now)

	tests := []struct {
		name    string
		mutate  func(*tokenParams)
		wantErr bool
	}{
		{"expired", func(p *tokenParams) { p.exp = now.Add(-time.Second) }, true},
		{"expires exactly now", func(p *tokenParams) { p.exp = now }, true},
		{"issued in the future", func(p *tokenParams) { p.iat = now.Add(time.Second) }, true},
		{"issued exactly now", func(p *tokenParams) { p.iat = now }, false},
		{"issued after expiry", func(p *tokenParams) {
			p.iat = now.Add(2 * time.Hour)
			p.exp = now.Add(time.Hour)
		}, true},
		{"issued at expiry", func(p *tokenParams) {
			p.iat = now.Add(-time.Hour)
			p.exp = now.Add(-time.Hour)
		}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams(now)
			tc.mutate(&p)
			_, err := v.Verify(context.Background(), signToken(t, key, p))
			if tc.wantErr {
				require.ErrorIs(t, err, ErrUnauthenticated)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestVerifyScopeMatchingIsWholeToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, key := newTestVerifier(t, now)

	tests := []struct {
		scope   string
		wantErr bool
	}{
		{"openid email", false},
		{"openid email profile", false},
		{"email openid", false},
		{"openidx email", true},
		{"openid emailx", true},
		{"openid", true},
		{"email", true},
		{"", true},
		{"openidemail", true},
	}
	for _, tc := range tests {
		p := validParams(now)
		p.scope = tc.scope
		_, err := v.Verify(context.Background(), signToken(t, key, p))
		if tc.wantErr {
			require.ErrorIs(t, err, ErrUnauthenticated, "scope %q must be rejected", tc.scope)
		} else {
			require.NoError(t, err, "scope %q must be accepted", tc.scope)
		}
	}
}

// fakeProfiles is a ProfileFetcher test double that records calls.
type fakeProfiles struct {
	profile *idp.UserProfile
	err     error
	calls   int
}

func (f *fakeProfiles) FetchUserProfile(context.Context, string) (*idp.UserProfile, error) {
	f.calls++
	return f.profile, f.err
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestVerifyProfileMergesIdPProfile(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	profiles := &fakeProfiles{profile: &idp.UserProfile{
		Email:         strPtr("verified@example.com"),
		EmailVerified: boolPtr(true),
	}}
	v, key := newTestVerifier(t, now, WithProfileFetcher(profiles))

	principal, err := v.VerifyProfile(context.Background(), signToken(t, key, validParams(now)))
	require.NoError(t, err)
	require.Equal(t, "verified@example.com", principal.Email)
	require.True(t, principal.EmailVerified)
	require.Equal(t, 1, profiles.calls)
}

func TestVerifyProfileRejectsIncompleteProfile(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	profiles := &fakeProfiles{profile: &idp.UserProfile{Email: strPtr("user@example.com")}}
	v, key := newTestVerifier(t, now, WithProfileFetcher(profiles))

	_, err := v.VerifyProfile(context.Background(), signToken(t, key, validParams(now)))
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyProfileRejectsOnFetchFailure(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	profiles := &fakeProfiles{err: dErrors.New(dErrors.CodeRemote, "userinfo failed")}
	v, key := newTestVerifier(t, now, WithProfileFetcher(profiles))

	_, err := v.VerifyProfile(context.Background(), signToken(t, key, validParams(now)))
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestVerifyProfileSkipsFetchOnInvalidToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	profiles := &fakeProfiles{profile: &idp.UserProfile{
		Email:         strPtr("verified@example.com"),
		EmailVerified: boolPtr(true),
	}}
	v, key := newTestVerifier(t, now, WithProfileFetcher(profiles))

	p := validParams(now)
	p.exp = now.Add(-time.Minute)
	_, err := v.VerifyProfile(context.Background(), signToken(t, key, p))
	require.ErrorIs(t, err, ErrUnauthenticated)
	require.Equal(t, 0, profiles.calls, "expired token must not reach the IdP")
}

func TestVerifierIsOpaqueAboutFailureReasons(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v, key := newTestVerifier(t, now)

	expired := validParams(now)
	expired.exp = now.Add(-time.Minute)
	badScope := validParams(now)
	badScope.scope = "openid"

	_, errA := v.Verify(context.Background(), signToken(t, key, expired))
	_, errB := v.Verify(context.Background(), signToken(t, key, badScope))
	require.True(t, errors.Is(errA, errB), "all rejections must be indistinguishable")
	require.Equal(t, errA.Error(), errB.Error())
}
