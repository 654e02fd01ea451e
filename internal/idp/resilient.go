package idp

import (
	"context"
	"log/slog"

	dErrors "flock/pkg/domain-errors"
	"flock/pkg/platform/circuit"
)

// ResilientClient wraps a Client with circuit breaker protection. When the
// circuit opens after consecutive remote failures, calls fail fast with a
// remote error instead of queueing behind a struggling IdP. A response from
// the IdP counts as success for the breaker even when it is a domain-level
// rejection such as not_found.
type ResilientClient struct {
	delegate Client
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// Ensure ResilientClient implements Client.
var _ Client = (*ResilientClient)(nil)

// NewResilientClient creates a circuit-breaker-protected IdP client.
func NewResilientClient(delegate Client, logger *slog.Logger, opts ...circuit.Option) *ResilientClient {
	return &ResilientClient{
		delegate: delegate,
		breaker:  circuit.New("idp", opts...),
		logger:   logger,
	}
}

// errCircuitOpen is returned without touching the network while the circuit
// is open.
var errCircuitOpen = dErrors.New(dErrors.CodeRemote, "identity provider unavailable")

func (r *ResilientClient) guard(ctx context.Context) error {
	if r.breaker.IsOpen() {
		r.logger.WarnContext(ctx, "circuit open, failing identity provider call fast",
			"circuit", r.breaker.Name(),
		)
		return errCircuitOpen
	}
	return nil
}

// record updates the breaker from a call result. Only transport-level remote
// failures count against the circuit.
func (r *ResilientClient) record(ctx context.Context, err error) {
	if err != nil && dErrors.HasCode(err, dErrors.CodeRemote) {
		if opened := r.breaker.RecordFailure(); opened {
			r.logger.ErrorContext(ctx, "circuit opened",
				"circuit", r.breaker.Name(),
			)
		}
		return
	}
	if closed := r.breaker.RecordSuccess(); closed {
		r.logger.InfoContext(ctx, "circuit closed",
			"circuit", r.breaker.Name(),
		)
	}
}

func (r *ResilientClient) CreateRole(ctx context.Context, name, description string) (string, error) {
	if err := r.guard(ctx); err != nil {
		return "", err
	}
	id, err := r.delegate.CreateRole(ctx, name, description)
	r.record(ctx, err)
	return id, err
}

func (r *ResilientClient) UpdateRole(ctx context.Context, id string, patch RolePatch) error {
	if err := r.guard(ctx); err != nil {
		return err
	}
	err := r.delegate.UpdateRole(ctx, id, patch)
	r.record(ctx, err)
	return err
}

func (r *ResilientClient) DeleteRole(ctx context.Context, id string) error {
	if err := r.guard(ctx); err != nil {
		return err
	}
	err := r.delegate.DeleteRole(ctx, id)
	r.record(ctx, err)
	return err
}

func (r *ResilientClient) AssignRolesToUser(ctx context.Context, userRef string, roleIDs []string) error {
	if err := r.guard(ctx); err != nil {
		return err
	}
	err := r.delegate.AssignRolesToUser(ctx, userRef, roleIDs)
	r.record(ctx, err)
	return err
}

func (r *ResilientClient) ListRoles(ctx context.Context) ([]Role, error) {
	if err := r.guard(ctx); err != nil {
		return nil, err
	}
	roles, err := r.delegate.ListRoles(ctx)
	r.record(ctx, err)
	return roles, err
}

func (r *ResilientClient) FetchUserProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	if err := r.guard(ctx); err != nil {
		return nil, err
	}
	profile, err := r.delegate.FetchUserProfile(ctx, accessToken)
	r.record(ctx, err)
	return profile, err
}

func (r *ResilientClient) SignupUser(ctx context.Context, req SignupRequest) (string, error) {
	if err := r.guard(ctx); err != nil {
		return "", err
	}
	userID, err := r.delegate.SignupUser(ctx, req)
	r.record(ctx, err)
	return userID, err
}
