// Package idp talks to the external Identity Provider. The IdP is the system
// of record for role identifiers and for credentials; this package exposes the
// narrow capability surface the rest of the service needs and nothing more.
package idp

import "context"

// Role is the IdP's view of a role: the authoritative id plus display fields.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UserProfile is the userinfo response for a subject. Pointer fields
// distinguish absent claims from zero values; verification requires both to
// be present.
type UserProfile struct {
	Subject       string  `json:"sub,omitempty"`
	Email         *string `json:"email"`
	EmailVerified *bool   `json:"email_verified"`
}

// SignupRequest carries the fields forwarded to the IdP when provisioning a
// new account. The password is never persisted locally; it exists only on
// this request path.
type SignupRequest struct {
	Email      string
	Password   string
	Username   string
	GivenName  string
	FamilyName string
	Name       string
	Nickname   string
	Picture    string

	// Metadata is attached to the IdP user record so post-login hooks can
	// inject it into issued tokens.
	Metadata map[string]string
}

// RolePatch carries optional fields for a partial role update. Nil fields
// retain their current value on the IdP side.
type RolePatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Client is the capability interface to the external IdP. Implementations own
// their timeouts; callers treat any timeout as a remote failure and do not
// retry.
type Client interface {
	// CreateRole creates a role and returns the IdP-assigned id. The local
	// store must use this id as its primary key.
	CreateRole(ctx context.Context, name, description string) (string, error)

	// UpdateRole applies a partial update to a role.
	UpdateRole(ctx context.Context, id string, patch RolePatch) error

	// DeleteRole removes a role. A missing role yields a not_found domain
	// error; any other failure is a remote error.
	DeleteRole(ctx context.Context, id string) error

	// AssignRolesToUser grants the given roles to a user on the IdP side.
	AssignRolesToUser(ctx context.Context, userRef string, roleIDs []string) error

	// ListRoles returns the remote role catalog.
	ListRoles(ctx context.Context) ([]Role, error)

	// FetchUserProfile resolves the subject's profile using the subject's
	// own bearer token.
	FetchUserProfile(ctx context.Context, accessToken string) (*UserProfile, error)

	// SignupUser creates the credential-bearing account on the IdP and
	// returns the IdP-assigned user id.
	SignupUser(ctx context.Context, req SignupRequest) (string, error)
}
