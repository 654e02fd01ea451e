package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	dErrors "flock/pkg/domain-errors"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classification binds a schema constraint name to its user-facing meaning.
type classification struct {
	kind    string
	code    dErrors.Code
	message string
}

// constraintTable is the single place constraint names from the migrations
// are given domain semantics. A violation whose constraint is absent here,
// or whose SQLSTATE does not match the expected kind, stays internal.
var constraintTable = map[string]classification{
	"role_pkey":     {pgUniqueViolation, dErrors.CodeConflict, "role with id '%s' already exists"},
	"role_name_key": {pgUniqueViolation, dErrors.CodeConflict, "role with name '%s' already exists"},

	"group_assignment_role_id_fkey":  {pgForeignKeyViolation, dErrors.CodeBadRequest, "referenced role with id '%s' does not exist"},
	"group_assignment_group_id_fkey": {pgForeignKeyViolation, dErrors.CodeBadRequest, "referenced group with id '%s' does not exist"},
	"group_assignment_user_id_fkey":  {pgForeignKeyViolation, dErrors.CodeBadRequest, "one or more referenced users do not exist"},
}

// classify maps a Postgres error onto the constraint table. values supplies
// the offending value per constraint name for message interpolation; batch
// constraints that cannot name a single value use a fixed message.
func classify(err error, values map[string]string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}

	c, ok := constraintTable[pgErr.ConstraintName]
	if !ok || c.kind != pgErr.Code {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}

	if strings.Contains(c.message, "%s") {
		if v, ok := values[pgErr.ConstraintName]; ok {
			return dErrors.New(c.code, fmt.Sprintf(c.message, v))
		}
	}
	return dErrors.New(c.code, strings.ReplaceAll(c.message, "%s", "?"))
}
