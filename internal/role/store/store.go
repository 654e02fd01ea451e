// Package store persists the local projection of roles and role assignments.
// Constraint violations never escape as raw driver errors: every store
// operation classifies them into typed domain errors.
package store

import (
	"context"

	"flock/internal/role/models"
)

// Store is the transactional persistence surface for roles and assignments.
// Mutating operations join an ambient transaction when the context carries
// one.
type Store interface {
	// Insert creates the local role row using the IdP-assigned id.
	Insert(ctx context.Context, role *models.Role) (*models.Role, error)

	// Update applies a partial update keyed by id; nil patch fields retain
	// their current value. Returns not_found if no row matches.
	Update(ctx context.Context, id string, patch models.RolePatch) (*models.Role, error)

	// Delete removes the role row and returns it; not_found if absent.
	Delete(ctx context.Context, id string) (*models.Role, error)

	// FindByID returns the role with the given id; not_found if absent.
	FindByID(ctx context.Context, id string) (*models.Role, error)

	// List returns all local roles ordered by weight, then name.
	List(ctx context.Context) ([]models.Role, error)

	// UpsertAssignments applies the whole batch as one statement: insert
	// each (user, group, role) row, overwriting role_id on conflict on the
	// (user_id, group_id) key. Either all pairs apply or none do.
	UpsertAssignments(ctx context.Context, groupID string, pairs []models.UserRole) error

	// RemoveAssignments deletes the assignment rows for the given users in
	// the group.
	RemoveAssignments(ctx context.Context, groupID string, userIDs []string) error

	// ListAssignments returns the group's assignment rows.
	ListAssignments(ctx context.Context, groupID string) ([]models.Assignment, error)
}
