package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"flock/internal/role/models"
	dErrors "flock/pkg/domain-errors"
)

type assignmentKey struct {
	userID  string
	groupID string
}

// MemoryStore is an in-memory role store for tests and local runs. It
// enforces the same uniqueness rules as the PostgreSQL schema and returns
// the same domain errors.
type MemoryStore struct {
	mu          sync.Mutex
	roles       map[string]models.Role
	assignments map[assignmentKey]string

	// knownUsers and knownGroups emulate the schema's foreign keys when
	// populated; empty sets disable the check.
	knownUsers  map[string]struct{}
	knownGroups map[string]struct{}
}

// NewMemory constructs an empty in-memory role store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		roles:       make(map[string]models.Role),
		assignments: make(map[assignmentKey]string),
	}
}

// SeedUsers registers the user ids the store treats as existing.
func (s *MemoryStore) SeedUsers(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.knownUsers == nil {
		s.knownUsers = make(map[string]struct{})
	}
	for _, id := range ids {
		s.knownUsers[id] = struct{}{}
	}
}

// SeedGroups registers the group ids the store treats as existing.
func (s *MemoryStore) SeedGroups(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.knownGroups == nil {
		s.knownGroups = make(map[string]struct{})
	}
	for _, id := range ids {
		s.knownGroups[id] = struct{}{}
	}
}

func (s *MemoryStore) Insert(_ context.Context, role *models.Role) (*models.Role, error) {
	if role == nil {
		return nil, fmt.Errorf("role is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[role.ID]; ok {
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("role with id '%s' already exists", role.ID))
	}
	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("role with name '%s' already exists", role.Name))
		}
	}
	s.roles[role.ID] = *role
	stored := *role
	return &stored, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch models.RolePatch) (*models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("role with id '%s' not found", id))
	}
	if patch.Name != nil {
		for otherID, other := range s.roles {
			if otherID != id && other.Name == *patch.Name {
				return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("role with name '%s' already exists", *patch.Name))
			}
		}
		role.Name = *patch.Name
	}
	if patch.Description != nil {
		role.Description = *patch.Description
	}
	if patch.Weight != nil {
		role.Weight = *patch.Weight
	}
	s.roles[id] = role
	stored := role
	return &stored, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (*models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("role with id '%s' not found", id))
	}
	delete(s.roles, id)
	for key := range s.assignments {
		if s.assignments[key] == id {
			delete(s.assignments, key)
		}
	}
	return &role, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("role with id '%s' not found", id))
	}
	return &role, nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := make([]models.Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Weight != roles[j].Weight {
			return roles[i].Weight < roles[j].Weight
		}
		return roles[i].Name < roles[j].Name
	})
	return roles, nil
}

func (s *MemoryStore) UpsertAssignments(_ context.Context, groupID string, pairs []models.UserRole) error {
	if len(pairs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.knownGroups != nil {
		if _, ok := s.knownGroups[groupID]; !ok {
			return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("referenced group with id '%s' does not exist", groupID))
		}
	}
	for _, p := range pairs {
		if _, ok := s.roles[p.RoleID]; !ok {
			return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("referenced role with id '%s' does not exist", p.RoleID))
		}
		if s.knownUsers != nil {
			if _, ok := s.knownUsers[p.UserID]; !ok {
				return dErrors.New(dErrors.CodeBadRequest, "one or more referenced users do not exist")
			}
		}
	}
	for _, p := range pairs {
		s.assignments[assignmentKey{userID: p.UserID, groupID: groupID}] = p.RoleID
	}
	return nil
}

func (s *MemoryStore) RemoveAssignments(_ context.Context, groupID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, userID := range userIDs {
		delete(s.assignments, assignmentKey{userID: userID, groupID: groupID})
	}
	return nil
}

func (s *MemoryStore) ListAssignments(_ context.Context, groupID string) ([]models.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var assignments []models.Assignment
	for key, roleID := range s.assignments {
		if key.groupID != groupID {
			continue
		}
		assignments = append(assignments, models.Assignment{
			UserID:  key.userID,
			GroupID: key.groupID,
			RoleID:  roleID,
		})
	}
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].UserID < assignments[j].UserID
	})
	return assignments, nil
}
