package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"flock/internal/account/models"
	dErrors "flock/pkg/domain-errors"
)

// MemoryStore is an in-memory member store for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	members map[uuid.UUID]models.Member
}

// NewMemory constructs an empty in-memory member store.
func NewMemory() *MemoryStore {
	return &MemoryStore{members: make(map[uuid.UUID]models.Member)}
}

func (s *MemoryStore) Insert(_ context.Context, member *models.Member) (*models.Member, error) {
	if member == nil {
		return nil, fmt.Errorf("member is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[member.ID]; ok {
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("member with id '%s' already exists", member.ID))
	}
	for _, existing := range s.members {
		if existing.Email == member.Email {
			return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("member with email '%s' already exists", member.Email))
		}
		if existing.Username == member.Username {
			return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("member with username '%s' already exists", member.Username))
		}
	}

	stored := *member
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.members[stored.ID] = stored
	out := stored
	return &out, nil
}

func (s *MemoryStore) SetSubjectID(_ context.Context, id uuid.UUID, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("member with id '%s' not found", id))
	}
	member.SubjectID = subjectID
	s.members[id] = member
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	member, ok := s.members[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("member with id '%s' not found", id))
	}
	return &member, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, member := range s.members {
		if member.Email == email {
			out := member
			return &out, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("member with email '%s' not found", email))
}
