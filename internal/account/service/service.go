// Package service provisions member accounts. A member exists in two places,
// the local member table and the IdP's user database, and provisioning keeps
// the pair consistent: the IdP signup runs inside the local transaction, so
// an IdP failure rolls the local row back.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"flock/internal/account/models"
	"flock/internal/account/store"
	"flock/internal/audit"
	"flock/internal/idp"
	"flock/internal/platform/privacy"
	dErrors "flock/pkg/domain-errors"
)

// subjectPrefix turns an IdP database user id into the subject reference the
// management API expects.
const subjectPrefix = "auth0|"

// Provisioner is the slice of the identity provider surface account
// provisioning depends on.
type Provisioner interface {
	SignupUser(ctx context.Context, req idp.SignupRequest) (string, error)
	AssignRolesToUser(ctx context.Context, userRef string, roleIDs []string) error
}

// Tx provides a transactional boundary for local mutations.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTx runs the function directly.
type NopTx struct{}

func (NopTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Option func(*Service)

// WithAuditor records provisioned members to the audit trail. Emails are
// anonymized before they reach the event.
func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// Service coordinates member provisioning.
type Service struct {
	provider Provisioner
	store    store.Store
	tx       Tx
	logger   *slog.Logger
	auditor  *audit.Publisher
}

func NewService(provider Provisioner, st store.Store, tx Tx, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{provider: provider, store: st, tx: tx, logger: logger}
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

// Provision creates the member row and the IdP account in one local
// transaction. The IdP user record carries the member id as metadata so
// post-login hooks can stamp it into issued tokens. Initial roles, if
// requested, are granted best-effort after the transaction committed.
func (s *Service) Provision(ctx context.Context, req *models.SignupRequest) (*models.Member, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	memberID := uuid.New()
	var provisioned *models.Member
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		stored, err := s.store.Insert(ctx, &models.Member{
			ID:        memberID,
			Email:     req.Email,
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			return err
		}

		subjectID, err := s.provider.SignupUser(ctx, idp.SignupRequest{
			Email:      req.Email,
			Password:   req.Password,
			Username:   req.Username,
			GivenName:  req.FirstName,
			FamilyName: req.LastName,
			Name:       strings.TrimSpace(req.FirstName + " " + req.LastName),
			Metadata:   map[string]string{"member_id": memberID.String()},
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeRemote, "sign up member on identity provider")
		}

		if err := s.store.SetSubjectID(ctx, memberID, subjectPrefix+subjectID); err != nil {
			return err
		}
		stored.SubjectID = subjectPrefix + subjectID
		provisioned = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(req.RoleIDs) > 0 {
		if err := s.provider.AssignRolesToUser(ctx, provisioned.SubjectID, req.RoleIDs); err != nil {
			// The account is live either way; missing roles can be
			// re-granted through the role endpoints.
			s.logger.ErrorContext(ctx, "initial role grant failed",
				"member_id", memberID, "subject_id", provisioned.SubjectID, "error", err)
		}
	}

	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:   audit.ActionMemberProvisioned,
			EntityID: memberID.String(),
			Detail:   privacy.AnonymizeEmail(req.Email),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit event not recorded", "member_id", memberID, "error", err)
		}
	}
	return provisioned, nil
}

// Get returns the local member record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return s.store.FindByID(ctx, id)
}

// GetByEmail returns the local member record with the given email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	if strings.TrimSpace(email) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return s.store.FindByEmail(ctx, email)
}
