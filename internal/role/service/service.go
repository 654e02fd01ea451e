// Package service coordinates role mutations across the identity provider
// and the local store. The IdP owns role identity: every create, update, and
// delete goes remote first, and the local row follows only when the remote
// call succeeded.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"flock/internal/audit"
	"flock/internal/auth"
	"flock/internal/idp"
	"flock/internal/role/metrics"
	"flock/internal/role/models"
	dErrors "flock/pkg/domain-errors"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// RoleProvider is the slice of the identity provider surface the role
// service depends on.
type RoleProvider interface {
	CreateRole(ctx context.Context, name, description string) (string, error)
	UpdateRole(ctx context.Context, id string, patch idp.RolePatch) error
	DeleteRole(ctx context.Context, id string) error
	ListRoles(ctx context.Context) ([]idp.Role, error)
}

// Store defines the persistence interface for roles and group assignments.
// Error contract:
// - lookups return a not_found domain error when no row matches
// - constraint violations surface as conflict or bad_request domain errors
type Store interface {
	Insert(ctx context.Context, role *models.Role) (*models.Role, error)
	Update(ctx context.Context, id string, patch models.RolePatch) (*models.Role, error)
	Delete(ctx context.Context, id string) (*models.Role, error)
	FindByID(ctx context.Context, id string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	UpsertAssignments(ctx context.Context, groupID string, pairs []models.UserRole) error
	RemoveAssignments(ctx context.Context, groupID string, userIDs []string) error
	ListAssignments(ctx context.Context, groupID string) ([]models.Assignment, error)
}

// Tx provides a transactional boundary for local mutations. The transaction
// travels in the context, so stores join it transparently.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTx runs the function directly. It backs stores that are atomic on
// their own, such as the in-memory store.
type NopTx struct{}

func (NopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Option func(*Service)

// Service is the role coordinator.
type Service struct {
	provider RoleProvider
	store    Store
	tx       Tx
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  *audit.Publisher
}

func NewService(provider RoleProvider, store Store, tx Tx, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		provider: provider,
		store:    store,
		tx:       tx,
		logger:   logger,
	}
	if svc.tx == nil {
		svc.tx = NopTx{}
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditor records role mutations to the audit trail.
func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// record emits an audit event. The actor is the verified caller when the
// request carried one.
func (s *Service) record(ctx context.Context, action audit.Action, entityID, detail string) {
	if s.auditor == nil {
		return
	}
	var actor string
	if p, ok := auth.PrincipalFrom(ctx); ok {
		actor = p.SubjectID
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		Actor:    actor,
		Action:   action,
		EntityID: entityID,
		Detail:   detail,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit event not recorded", "action", action, "error", err)
	}
}

// Create registers the role with the identity provider, then mirrors it
// locally under the IdP-assigned id. If the local insert hits a uniqueness
// conflict, the remote role is deleted again on a best-effort basis so the
// two systems do not drift.
func (s *Service) Create(ctx context.Context, req *models.CreateRoleRequest) (*models.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	remoteID, err := s.provider.CreateRole(ctx, req.Name, req.Description)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRemote, "create role on identity provider")
	}

	var created *models.Role
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := s.store.Insert(ctx, &models.Role{
			ID:          remoteID,
			Name:        req.Name,
			Description: req.Description,
			Weight:      req.Weight,
		})
		if err != nil {
			return err
		}
		created = stored
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.compensate(ctx, remoteID, req.Name)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRolesCreated()
	}
	s.record(ctx, audit.ActionRoleCreated, created.ID, created.Name)
	return created, nil
}

// compensate undoes a remote role create after the local insert was
// rejected. A failure here leaves an orphan on the IdP side, which the
// drift report will surface.
func (s *Service) compensate(ctx context.Context, remoteID, name string) {
	if err := s.provider.DeleteRole(ctx, remoteID); err != nil {
		s.logger.ErrorContext(ctx, "compensating role delete failed, role orphaned on identity provider",
			"role_id", remoteID, "role_name", name, "error", err)
		if s.metrics != nil {
			s.metrics.IncrementCompensations("failed")
		}
		return
	}
	s.logger.InfoContext(ctx, "rolled back role on identity provider after local conflict",
		"role_id", remoteID, "role_name", name)
	if s.metrics != nil {
		s.metrics.IncrementCompensations("succeeded")
	}
}

// Update patches the role remotely first, then applies the same patch to the
// local row. Weight only exists locally and never reaches the IdP.
func (s *Service) Update(ctx context.Context, id string, req *models.UpdateRoleRequest) (*models.Role, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "role id is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.provider.UpdateRole(ctx, id, idp.RolePatch{Name: req.Name, Description: req.Description}); err != nil {
		// Any remote rejection is fatal here, a 404 included; only the
		// local lookup below decides not_found for this operation.
		return nil, &dErrors.Error{Code: dErrors.CodeRemote, Message: "update role on identity provider", Err: err}
	}

	var updated *models.Role
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := s.store.Update(ctx, id, req.Patch())
		if err != nil {
			return err
		}
		updated = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRolesUpdated()
	}
	s.record(ctx, audit.ActionRoleUpdated, updated.ID, updated.Name)
	return updated, nil
}

// Delete removes the role remotely first, then locally. Assignment rows
// referencing the role are removed by the schema's cascade.
func (s *Service) Delete(ctx context.Context, id string) (*models.Role, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "role id is required")
	}

	if err := s.provider.DeleteRole(ctx, id); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("role with id '%s' not found", id))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeRemote, "delete role on identity provider")
	}

	var deleted *models.Role
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := s.store.Delete(ctx, id)
		if err != nil {
			return err
		}
		deleted = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementRolesDeleted()
	}
	s.record(ctx, audit.ActionRoleDeleted, deleted.ID, deleted.Name)
	return deleted, nil
}

// Get returns the local projection of a role.
func (s *Service) Get(ctx context.Context, id string) (*models.Role, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "role id is required")
	}
	return s.store.FindByID(ctx, id)
}

// List returns all local roles ordered by weight, then name.
func (s *Service) List(ctx context.Context) ([]models.Role, error) {
	return s.store.List(ctx)
}

// AssignUsers writes the whole batch of (user, role) pairs for the group as
// one statement. Existing assignments for the same user are overwritten;
// either every pair applies or none do.
func (s *Service) AssignUsers(ctx context.Context, groupID string, req *models.AssignUsersRequest) error {
	if groupID == "" {
		return dErrors.New(dErrors.CodeValidation, "group id is required")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if err := s.store.UpsertAssignments(ctx, groupID, req.Users); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.AddAssignmentsUpserted(float64(len(req.Users)))
	}
	s.record(ctx, audit.ActionUsersAssigned, groupID, fmt.Sprintf("%d users", len(req.Users)))
	return nil
}

// RemoveUsers detaches the users from the group. Users without an
// assignment are skipped silently.
func (s *Service) RemoveUsers(ctx context.Context, groupID string, req *models.RemoveUsersRequest) error {
	if groupID == "" {
		return dErrors.New(dErrors.CodeValidation, "group id is required")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if err := s.store.RemoveAssignments(ctx, groupID, req.UserIDs); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.AddAssignmentsRemoved(float64(len(req.UserIDs)))
	}
	s.record(ctx, audit.ActionUsersRemoved, groupID, fmt.Sprintf("%d users", len(req.UserIDs)))
	return nil
}

// GroupAssignments returns the group's current role assignments.
func (s *Service) GroupAssignments(ctx context.Context, groupID string) ([]models.Assignment, error) {
	if groupID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "group id is required")
	}
	return s.store.ListAssignments(ctx, groupID)
}

// Drift compares the remote role catalog against the local rows, keyed by
// role id.
func (s *Service) Drift(ctx context.Context) (*models.DriftReport, error) {
	remote, err := s.provider.ListRoles(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeRemote, "list roles on identity provider")
	}
	local, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	localByID := make(map[string]struct{}, len(local))
	for _, role := range local {
		localByID[role.ID] = struct{}{}
	}
	remoteByID := make(map[string]struct{}, len(remote))
	for _, role := range remote {
		remoteByID[role.ID] = struct{}{}
	}

	report := &models.DriftReport{}
	for _, role := range remote {
		if _, ok := localByID[role.ID]; !ok {
			report.RemoteOnly = append(report.RemoteOnly, models.Role{
				ID:          role.ID,
				Name:        role.Name,
				Description: role.Description,
			})
		}
	}
	for _, role := range local {
		if _, ok := remoteByID[role.ID]; !ok {
			report.LocalOnly = append(report.LocalOnly, role)
		}
	}

	if s.metrics != nil {
		s.metrics.SetDriftRoles("remote_only", float64(len(report.RemoteOnly)))
		s.metrics.SetDriftRoles("local_only", float64(len(report.LocalOnly)))
	}
	return report, nil
}
