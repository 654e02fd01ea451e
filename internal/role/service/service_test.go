package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"flock/internal/idp"
	"flock/internal/role/models"
	"flock/internal/role/service/mocks"
	"flock/internal/role/store"
	dErrors "flock/pkg/domain-errors"
)

func ptr[T any](v T) *T { return &v }

const (
	userAlpha = "2f7a9c4e-1d3b-4a6f-9e8d-0c5b7a2e4f61"
	userBeta  = "8b1e6d2a-5c4f-4e9b-a7d3-6f0c9e8b1a52"
)

type ServiceSuite struct {
	suite.Suite

	ctrl     *gomock.Controller
	provider *mocks.MockRoleProvider
	store    *mocks.MockStore
	svc      *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.provider = mocks.NewMockRoleProvider(s.ctrl)
	s.store = mocks.NewMockStore(s.ctrl)
	s.svc = NewService(s.provider, s.store, NopTx{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestCreateSuccess() {
	req := &models.CreateRoleRequest{Name: "usher", Description: "greets people", Weight: 5}

	s.provider.EXPECT().CreateRole(gomock.Any(), "usher", "greets people").Return("rol_1", nil)
	s.store.EXPECT().Insert(gomock.Any(), &models.Role{ID: "rol_1", Name: "usher", Description: "greets people", Weight: 5}).
		DoAndReturn(func(_ context.Context, role *models.Role) (*models.Role, error) {
			stored := *role
			return &stored, nil
		})

	created, err := s.svc.Create(context.Background(), req)
	s.Require().NoError(err)
	s.Equal("rol_1", created.ID, "local row carries the IdP-assigned id")
	s.Equal(int32(5), created.Weight)
}

func (s *ServiceSuite) TestCreateValidationSkipsProvider() {
	_, err := s.svc.Create(context.Background(), &models.CreateRoleRequest{Name: "  "})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
}

func (s *ServiceSuite) TestCreateRemoteFailureSkipsLocal() {
	s.provider.EXPECT().CreateRole(gomock.Any(), "usher", "").
		Return("", dErrors.New(dErrors.CodeRemote, "identity provider unavailable"))

	_, err := s.svc.Create(context.Background(), &models.CreateRoleRequest{Name: "usher"})
	s.True(dErrors.HasCode(err, dErrors.CodeRemote), "got %v", err)
}

func (s *ServiceSuite) TestCreateLocalConflictCompensatesRemote() {
	s.provider.EXPECT().CreateRole(gomock.Any(), "usher", "").Return("rol_1", nil)
	s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "role with name 'usher' already exists"))
	s.provider.EXPECT().DeleteRole(gomock.Any(), "rol_1").Return(nil).Times(1)

	_, err := s.svc.Create(context.Background(), &models.CreateRoleRequest{Name: "usher"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
}

func (s *ServiceSuite) TestCreateCompensationFailureStillReturnsConflict() {
	s.provider.EXPECT().CreateRole(gomock.Any(), "usher", "").Return("rol_1", nil)
	s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "role with name 'usher' already exists"))
	s.provider.EXPECT().DeleteRole(gomock.Any(), "rol_1").
		Return(dErrors.New(dErrors.CodeRemote, "identity provider unavailable"))

	_, err := s.svc.Create(context.Background(), &models.CreateRoleRequest{Name: "usher"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
}

func (s *ServiceSuite) TestCreateLocalInternalFailureDoesNotCompensate() {
	s.provider.EXPECT().CreateRole(gomock.Any(), "usher", "").Return("rol_1", nil)
	s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "store operation failed"))

	_, err := s.svc.Create(context.Background(), &models.CreateRoleRequest{Name: "usher"})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal), "got %v", err)
}

func (s *ServiceSuite) TestUpdateRemoteFirst() {
	s.provider.EXPECT().UpdateRole(gomock.Any(), "rol_1", idp.RolePatch{Name: ptr("greeter")}).
		Return(dErrors.New(dErrors.CodeRemote, "identity provider unavailable")).Times(1)

	_, err := s.svc.Update(context.Background(), "rol_1", &models.UpdateRoleRequest{Name: ptr("greeter")})
	s.True(dErrors.HasCode(err, dErrors.CodeRemote), "got %v", err)
}

func (s *ServiceSuite) TestUpdateRemoteNotFoundIsRemoteError() {
	// A remote 404 on update is a fatal remote failure, not a lookup miss:
	// the local row was never consulted.
	s.provider.EXPECT().UpdateRole(gomock.Any(), "rol_missing", gomock.Any()).
		Return(dErrors.New(dErrors.CodeNotFound, "identity provider resource not found")).Times(1)

	_, err := s.svc.Update(context.Background(), "rol_missing", &models.UpdateRoleRequest{Name: ptr("x")})
	s.True(dErrors.HasCode(err, dErrors.CodeRemote), "got %v", err)
}

func (s *ServiceSuite) TestUpdateLocalMissingAfterRemote() {
	s.provider.EXPECT().UpdateRole(gomock.Any(), "rol_1", idp.RolePatch{Name: ptr("greeter")}).
		Return(nil).Times(1)
	s.store.EXPECT().Update(gomock.Any(), "rol_1", gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "role with id 'rol_1' not found"))

	// The remote side is already updated; the caller still sees not_found.
	_, err := s.svc.Update(context.Background(), "rol_1", &models.UpdateRoleRequest{Name: ptr("greeter")})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
}

func (s *ServiceSuite) TestUpdateSuccess() {
	req := &models.UpdateRoleRequest{Description: ptr("new"), Weight: ptr(int32(7))}

	s.provider.EXPECT().UpdateRole(gomock.Any(), "rol_1", idp.RolePatch{Description: ptr("new")}).Return(nil)
	s.store.EXPECT().Update(gomock.Any(), "rol_1", models.RolePatch{Description: ptr("new"), Weight: ptr(int32(7))}).
		Return(&models.Role{ID: "rol_1", Name: "usher", Description: "new", Weight: 7}, nil)

	updated, err := s.svc.Update(context.Background(), "rol_1", req)
	s.Require().NoError(err)
	s.Equal("new", updated.Description)
	s.Equal(int32(7), updated.Weight)
}

func (s *ServiceSuite) TestUpdateEmptyNameRejected() {
	_, err := s.svc.Update(context.Background(), "rol_1", &models.UpdateRoleRequest{Name: ptr("")})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
}

func (s *ServiceSuite) TestDeleteSuccess() {
	s.provider.EXPECT().DeleteRole(gomock.Any(), "rol_1").Return(nil)
	s.store.EXPECT().Delete(gomock.Any(), "rol_1").
		Return(&models.Role{ID: "rol_1", Name: "usher"}, nil)

	deleted, err := s.svc.Delete(context.Background(), "rol_1")
	s.Require().NoError(err)
	s.Equal("usher", deleted.Name)
}

func (s *ServiceSuite) TestDeleteRemoteNotFoundSkipsLocal() {
	s.provider.EXPECT().DeleteRole(gomock.Any(), "rol_missing").
		Return(dErrors.New(dErrors.CodeNotFound, "role not found")).Times(1)

	_, err := s.svc.Delete(context.Background(), "rol_missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
}

func (s *ServiceSuite) TestDeleteLocalMissingAfterRemote() {
	s.provider.EXPECT().DeleteRole(gomock.Any(), "rol_1").Return(nil).Times(1)
	s.store.EXPECT().Delete(gomock.Any(), "rol_1").
		Return(nil, dErrors.New(dErrors.CodeNotFound, "role with id 'rol_1' not found"))

	_, err := s.svc.Delete(context.Background(), "rol_1")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
}

func (s *ServiceSuite) TestAssignUsers() {
	pairs := []models.UserRole{
		{UserID: userAlpha, RoleID: "rol_1"},
		{UserID: userBeta, RoleID: "rol_2"},
	}
	s.store.EXPECT().UpsertAssignments(gomock.Any(), "grp_1", pairs).Return(nil)

	err := s.svc.AssignUsers(context.Background(), "grp_1", &models.AssignUsersRequest{Users: pairs})
	s.NoError(err)
}

func (s *ServiceSuite) TestAssignUsersValidation() {
	err := s.svc.AssignUsers(context.Background(), "grp_1", &models.AssignUsersRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)

	err = s.svc.AssignUsers(context.Background(), "", &models.AssignUsersRequest{
		Users: []models.UserRole{{UserID: userAlpha, RoleID: "rol_1"}},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)

	err = s.svc.AssignUsers(context.Background(), "grp_1", &models.AssignUsersRequest{
		Users: []models.UserRole{{UserID: "usr_1", RoleID: "rol_1"}},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
}

func (s *ServiceSuite) TestRemoveUsers() {
	s.store.EXPECT().RemoveAssignments(gomock.Any(), "grp_1", []string{userAlpha, userBeta}).Return(nil)

	err := s.svc.RemoveUsers(context.Background(), "grp_1", &models.RemoveUsersRequest{UserIDs: []string{userAlpha, userBeta}})
	s.NoError(err)
}

func (s *ServiceSuite) TestRemoveUsersMalformedID() {
	err := s.svc.RemoveUsers(context.Background(), "grp_1", &models.RemoveUsersRequest{UserIDs: []string{"usr_1"}})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
}

func (s *ServiceSuite) TestDrift() {
	s.provider.EXPECT().ListRoles(gomock.Any()).Return([]idp.Role{
		{ID: "rol_a", Name: "alpha"},
		{ID: "rol_b", Name: "beta"},
	}, nil)
	s.store.EXPECT().List(gomock.Any()).Return([]models.Role{
		{ID: "rol_b", Name: "beta", Weight: 3},
		{ID: "rol_c", Name: "gamma"},
	}, nil)

	report, err := s.svc.Drift(context.Background())
	s.Require().NoError(err)
	s.Require().Len(report.RemoteOnly, 1)
	s.Equal("rol_a", report.RemoteOnly[0].ID)
	s.Require().Len(report.LocalOnly, 1)
	s.Equal("rol_c", report.LocalOnly[0].ID)
}

func (s *ServiceSuite) TestDriftInSync() {
	s.provider.EXPECT().ListRoles(gomock.Any()).Return([]idp.Role{{ID: "rol_a"}}, nil)
	s.store.EXPECT().List(gomock.Any()).Return([]models.Role{{ID: "rol_a"}}, nil)

	report, err := s.svc.Drift(context.Background())
	s.Require().NoError(err)
	s.Empty(report.RemoteOnly)
	s.Empty(report.LocalOnly)
}

// countingProvider hands out unique ids and tracks create/delete volume for
// the race test below.
type countingProvider struct {
	creates atomic.Int64
	deletes atomic.Int64
}

func (p *countingProvider) CreateRole(context.Context, string, string) (string, error) {
	n := p.creates.Add(1)
	return fmt.Sprintf("rol_%d", n), nil
}

func (p *countingProvider) UpdateRole(context.Context, string, idp.RolePatch) error { return nil }

func (p *countingProvider) DeleteRole(context.Context, string) error {
	p.deletes.Add(1)
	return nil
}

func (p *countingProvider) ListRoles(context.Context) ([]idp.Role, error) { return nil, nil }

func TestCreateConcurrentSameName(t *testing.T) {
	provider := &countingProvider{}
	mem := store.NewMemory()
	svc := NewService(provider, mem, NopTx{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), &models.CreateRoleRequest{Name: "usher"})
		}()
	}
	wg.Wait()

	var conflicts, successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one create wins")
	assert.Equal(t, 1, conflicts, "the loser sees a conflict")
	assert.Equal(t, int64(2), provider.creates.Load(), "both goroutines reached the provider")
	assert.Equal(t, int64(1), provider.deletes.Load(), "the losing role is deleted remotely")

	roles, err := mem.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}
