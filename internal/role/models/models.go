package models

// Role is the local projection of an IdP-owned role. The id is assigned by
// the IdP on creation and is the primary key of the local row, which makes
// the IdP the source of truth for role identity. Weight is a purely local
// ordering field and is never synced to the IdP.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Weight      int32  `json:"weight"`
}

// RolePatch carries optional fields for a partial update. Nil fields retain
// their current value.
type RolePatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Weight      *int32  `json:"weight,omitempty"`
}

// Assignment binds a user to a role within a group. A user holds at most one
// role per group; re-assignment overwrites the existing row.
type Assignment struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
	RoleID  string `json:"role_id"`
}

// UserRole is one (user, role) pair of a bulk assignment request.
type UserRole struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

// DriftReport compares the remote role catalog against local rows. Both
// slices empty means the two systems agree.
type DriftReport struct {
	RemoteOnly []Role `json:"remote_only"`
	LocalOnly  []Role `json:"local_only"`
}
