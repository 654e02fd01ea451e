// Package store persists local member records.
package store

import (
	"context"

	"github.com/google/uuid"

	"flock/internal/account/models"
)

// Store is the persistence surface for members. Mutations join an ambient
// transaction when the context carries one.
type Store interface {
	// Insert creates the member row; duplicate email or username yields a
	// conflict domain error.
	Insert(ctx context.Context, member *models.Member) (*models.Member, error)

	// SetSubjectID records the IdP user id on the member row.
	SetSubjectID(ctx context.Context, id uuid.UUID, subjectID string) error

	// FindByID returns the member; not_found if absent.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)

	// FindByEmail returns the member with the given email; not_found if
	// absent.
	FindByEmail(ctx context.Context, email string) (*models.Member, error)
}
