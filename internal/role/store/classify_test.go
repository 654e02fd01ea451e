package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "flock/pkg/domain-errors"
)

func pgError(code, constraint string) error {
	return &pgconn.PgError{Code: code, ConstraintName: constraint, Message: "violation"}
}

func TestClassifyConstraints(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		values      map[string]string
		wantCode    dErrors.Code
		wantMessage string
	}{
		{
			name:        "duplicate role name",
			err:         pgError(pgUniqueViolation, "role_name_key"),
			values:      map[string]string{"role_name_key": "usher"},
			wantCode:    dErrors.CodeConflict,
			wantMessage: "role with name 'usher' already exists",
		},
		{
			name:        "duplicate role id",
			err:         pgError(pgUniqueViolation, "role_pkey"),
			values:      map[string]string{"role_pkey": "rol_1"},
			wantCode:    dErrors.CodeConflict,
			wantMessage: "role with id 'rol_1' already exists",
		},
		{
			name:        "assignment references missing role",
			err:         pgError(pgForeignKeyViolation, "group_assignment_role_id_fkey"),
			values:      map[string]string{"group_assignment_role_id_fkey": "rol_missing"},
			wantCode:    dErrors.CodeBadRequest,
			wantMessage: "referenced role with id 'rol_missing' does not exist",
		},
		{
			name:        "assignment references missing group",
			err:         pgError(pgForeignKeyViolation, "group_assignment_group_id_fkey"),
			values:      map[string]string{"group_assignment_group_id_fkey": "grp_missing"},
			wantCode:    dErrors.CodeBadRequest,
			wantMessage: "referenced group with id 'grp_missing' does not exist",
		},
		{
			name:        "assignment references missing user",
			err:         pgError(pgForeignKeyViolation, "group_assignment_user_id_fkey"),
			wantCode:    dErrors.CodeBadRequest,
			wantMessage: "one or more referenced users do not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, tt.values)
			require.Error(t, got)
			assert.True(t, dErrors.HasCode(got, tt.wantCode), "got %v", got)
			assert.EqualError(t, got, tt.wantMessage)
		})
	}
}

func TestClassifyUnknownConstraintStaysInternal(t *testing.T) {
	got := classify(pgError(pgUniqueViolation, "some_other_key"), nil)
	assert.True(t, dErrors.HasCode(got, dErrors.CodeInternal), "got %v", got)
}

func TestClassifyKindMismatchStaysInternal(t *testing.T) {
	// A known constraint name arriving with the wrong SQLSTATE must not be
	// surfaced with the table's friendly message.
	got := classify(pgError(pgForeignKeyViolation, "role_name_key"), map[string]string{"role_name_key": "usher"})
	assert.True(t, dErrors.HasCode(got, dErrors.CodeInternal), "got %v", got)
}

func TestClassifyNonPostgresError(t *testing.T) {
	cause := errors.New("connection reset")
	got := classify(cause, nil)
	assert.True(t, dErrors.HasCode(got, dErrors.CodeInternal), "got %v", got)
	assert.ErrorIs(t, got, cause)
}

func TestClassifyMissingValueFallsBack(t *testing.T) {
	got := classify(pgError(pgUniqueViolation, "role_name_key"), nil)
	assert.True(t, dErrors.HasCode(got, dErrors.CodeConflict), "got %v", got)
	assert.EqualError(t, got, "role with name '?' already exists")
}
