package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"flock/internal/role/models"
	dErrors "flock/pkg/domain-errors"
	"flock/pkg/platform/tx"
)

// PostgresStore persists roles and group assignments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed role store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer joins the ambient transaction when the context carries one.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, role *models.Role) (*models.Role, error) {
	if role == nil {
		return nil, fmt.Errorf("role is required")
	}
	query := `
		INSERT INTO role (id, name, description, weight)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, description, weight
	`
	stored, err := scanRole(s.execer(ctx).QueryRowContext(ctx, query,
		role.ID,
		role.Name,
		role.Description,
		role.Weight,
	))
	if err != nil {
		return nil, classify(err, map[string]string{
			"role_pkey":     role.ID,
			"role_name_key": role.Name,
		})
	}
	return stored, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch models.RolePatch) (*models.Role, error) {
	query := `
		UPDATE role
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    weight = COALESCE($4, weight)
		WHERE id = $1
		RETURNING id, name, description, weight
	`
	stored, err := scanRole(s.execer(ctx).QueryRowContext(ctx, query,
		id,
		patch.Name,
		patch.Description,
		patch.Weight,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("role with id '%s' not found", id))
		}
		values := map[string]string{}
		if patch.Name != nil {
			values["role_name_key"] = *patch.Name
		}
		return nil, classify(err, values)
	}
	return stored, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (*models.Role, error) {
	query := `
		DELETE FROM role
		WHERE id = $1
		RETURNING id, name, description, weight
	`
	stored, err := scanRole(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("role with id '%s' not found", id))
		}
		return nil, classify(err, nil)
	}
	return stored, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Role, error) {
	query := `
		SELECT id, name, description, weight
		FROM role
		WHERE id = $1
	`
	stored, err := scanRole(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("role with id '%s' not found", id))
		}
		return nil, classify(err, nil)
	}
	return stored, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Role, error) {
	query := `
		SELECT id, name, description, weight
		FROM role
		ORDER BY weight, name
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

func (s *PostgresStore) UpsertAssignments(ctx context.Context, groupID string, pairs []models.UserRole) error {
	if len(pairs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO group_assignment (user_id, group_id, role_id)
		VALUES `)
	args := make([]any, 0, len(pairs)*3)
	for i, p := range pairs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 3
		sb.WriteString("($" + strconv.Itoa(base+1) + ", $" + strconv.Itoa(base+2) + ", $" + strconv.Itoa(base+3) + ")")
		args = append(args, p.UserID, groupID, p.RoleID)
	}
	sb.WriteString(`
		ON CONFLICT (user_id, group_id) DO UPDATE SET role_id = EXCLUDED.role_id`)

	if _, err := s.execer(ctx).ExecContext(ctx, sb.String(), args...); err != nil {
		return classify(err, map[string]string{
			"group_assignment_group_id_fkey": groupID,
		})
	}
	return nil
}

func (s *PostgresStore) RemoveAssignments(ctx context.Context, groupID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]any, 0, len(userIDs)+1)
	args = append(args, groupID)
	for i, id := range userIDs {
		placeholders[i] = "$" + strconv.Itoa(i+2)
		args = append(args, id)
	}
	query := `
		DELETE FROM group_assignment
		WHERE group_id = $1 AND user_id IN (` + strings.Join(placeholders, ", ") + `)`

	if _, err := s.execer(ctx).ExecContext(ctx, query, args...); err != nil {
		return classify(err, nil)
	}
	return nil
}

func (s *PostgresStore) ListAssignments(ctx context.Context, groupID string) ([]models.Assignment, error) {
	query := `
		SELECT user_id, group_id, role_id
		FROM group_assignment
		WHERE group_id = $1
		ORDER BY user_id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var assignments []models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.UserID, &a.GroupID, &a.RoleID); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return assignments, nil
}

type roleRow interface {
	Scan(dest ...any) error
}

func scanRole(row roleRow) (*models.Role, error) {
	var role models.Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Weight); err != nil {
		return nil, err
	}
	return &role, nil
}
