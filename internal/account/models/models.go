package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "flock/pkg/domain-errors"
)

// Member is the local account record. Credentials never live here; the IdP
// holds them. SubjectID is the IdP user id, filled in once provisioning
// completed.
type Member struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	SubjectID string    `json:"subject_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const minPasswordLength = 12

// SignupRequest provisions a member locally and on the IdP in one call.
// RoleIDs optionally grants initial roles after the account exists.
type SignupRequest struct {
	Email     string   `json:"email"`
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	RoleIDs   []string `json:"role_ids,omitempty"`
}

// Validate checks required fields. Password policy beyond length is the
// IdP's concern.
func (r *SignupRequest) Validate() error {
	if !strings.Contains(r.Email, "@") {
		return dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	if strings.TrimSpace(r.Username) == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 12 characters")
	}
	for _, id := range r.RoleIDs {
		if id == "" {
			return dErrors.New(dErrors.CodeValidation, "role ids cannot be empty")
		}
	}
	return nil
}
