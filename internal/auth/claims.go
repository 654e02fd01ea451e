package auth

import (
	"crypto/rsa"

	dErrors "flock/pkg/domain-errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload of a bearer token issued by the IdP.
// Audience accepts either a single string or an array on the wire
// (jwt.ClaimStrings normalizes both forms to a slice).
type Claims struct {
	Scope           string `json:"scope"`
	AuthorizedParty string `json:"azp,omitempty"`
	Email           string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Codec decodes bearer tokens and verifies their signature against a trust
// anchor. It performs no temporal or policy checks; those belong to the
// Verifier so the acceptance pipeline stays in one place and in one order.
type Codec struct {
	key *rsa.PublicKey
}

// NewCodec builds a Codec from a PEM-encoded RSA public key.
func NewCodec(publicKeyPEM []byte) (*Codec, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "parse trust anchor public key")
	}
	return &Codec{key: key}, nil
}

// Decode parses the token, verifies its RS256 signature, and returns the
// typed claim set. Standard claim validation (exp, iat, ...) is deliberately
// skipped here; the Verifier applies those checks against its own clock.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing algorithm")
		}
		return c.key, nil
	},
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "token decode failed")
	}
	if !token.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token signature")
	}

	return claims, nil
}
