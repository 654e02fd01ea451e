package models

import (
	"strings"

	"github.com/google/uuid"

	dErrors "flock/pkg/domain-errors"
)

// CreateRoleRequest creates a role on the IdP and mirrors it locally.
type CreateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Weight      int32  `json:"weight"`
}

// Validate checks required fields.
func (r *CreateRoleRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "role name is required")
	}
	return nil
}

// UpdateRoleRequest partially updates a role. Unset fields keep their
// current value.
type UpdateRoleRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Weight      *int32  `json:"weight,omitempty"`
}

// Validate rejects an update that would set the name to empty.
func (r *UpdateRoleRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "role name cannot be empty")
	}
	return nil
}

// Patch converts the request into a store-level patch.
func (r *UpdateRoleRequest) Patch() RolePatch {
	return RolePatch{Name: r.Name, Description: r.Description, Weight: r.Weight}
}

// AssignUsersRequest associates users with a group, one role each.
type AssignUsersRequest struct {
	Users []UserRole `json:"users"`
}

// Validate requires a non-empty set of pairs, unique by user id within the
// request. Duplicate users would make the batch outcome order-dependent.
func (r *AssignUsersRequest) Validate() error {
	if len(r.Users) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one user is required")
	}
	seen := make(map[string]struct{}, len(r.Users))
	for _, u := range r.Users {
		if u.UserID == "" || u.RoleID == "" {
			return dErrors.New(dErrors.CodeValidation, "user_id and role_id are required for every entry")
		}
		// User ids are UUIDs in storage; a malformed one must fail here,
		// not as a cast error inside the batch statement.
		if _, err := uuid.Parse(u.UserID); err != nil {
			return dErrors.New(dErrors.CodeValidation, "user id '"+u.UserID+"' is not a valid uuid")
		}
		if _, dup := seen[u.UserID]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate user '"+u.UserID+"' in request")
		}
		seen[u.UserID] = struct{}{}
	}
	return nil
}

// RemoveUsersRequest detaches users from a group.
type RemoveUsersRequest struct {
	UserIDs []string `json:"user_ids"`
}

// Validate requires a non-empty user list.
func (r *RemoveUsersRequest) Validate() error {
	if len(r.UserIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one user id is required")
	}
	for _, id := range r.UserIDs {
		if _, err := uuid.Parse(id); err != nil {
			return dErrors.New(dErrors.CodeValidation, "user id '"+id+"' is not a valid uuid")
		}
	}
	return nil
}
