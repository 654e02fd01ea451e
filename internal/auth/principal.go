package auth

import "context"

// Principal is the verified, request-scoped identity derived from a bearer
// token. It is constructed only by the Verifier on success, never persisted,
// and immutable once built.
type Principal struct {
	SubjectID     string
	Email         string
	EmailVerified bool
	Scopes        []string
	RawToken      string
}

// HasScope reports whether the principal carries the given scope.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal stores the verified principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the verified principal from the context.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}
