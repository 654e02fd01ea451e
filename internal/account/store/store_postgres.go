package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"flock/internal/account/models"
	dErrors "flock/pkg/domain-errors"
	"flock/pkg/platform/tx"
)

// PostgresStore persists members in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed member store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, member *models.Member) (*models.Member, error) {
	if member == nil {
		return nil, fmt.Errorf("member is required")
	}
	query := `
		INSERT INTO member (id, email, username, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, username, first_name, last_name, COALESCE(subject_id, ''), created_at
	`
	stored, err := scanMember(s.execer(ctx).QueryRowContext(ctx, query,
		member.ID,
		member.Email,
		member.Username,
		member.FirstName,
		member.LastName,
	))
	if err != nil {
		return nil, classifyMember(err, member)
	}
	return stored, nil
}

func (s *PostgresStore) SetSubjectID(ctx context.Context, id uuid.UUID, subjectID string) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE member SET subject_id = $2 WHERE id = $1`, id, subjectID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}
	if rows == 0 {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("member with id '%s' not found", id))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	query := `
		SELECT id, email, username, first_name, last_name, COALESCE(subject_id, ''), created_at
		FROM member
		WHERE id = $1
	`
	stored, err := scanMember(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("member with id '%s' not found", id))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}
	return stored, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	query := `
		SELECT id, email, username, first_name, last_name, COALESCE(subject_id, ''), created_at
		FROM member
		WHERE email = $1
	`
	stored, err := scanMember(s.execer(ctx).QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("member with email '%s' not found", email))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}
	return stored, nil
}

const (
	pgUniqueViolation = "23505"
)

// classifyMember maps the member table's uniqueness constraints onto domain
// errors.
func classifyMember(err error, member *models.Member) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}
	switch pgErr.ConstraintName {
	case "member_email_key":
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("member with email '%s' already exists", member.Email))
	case "member_username_key":
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("member with username '%s' already exists", member.Username))
	case "member_pkey":
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("member with id '%s' already exists", member.ID))
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
}

type memberRow interface {
	Scan(dest ...any) error
}

func scanMember(row memberRow) (*models.Member, error) {
	var member models.Member
	if err := row.Scan(
		&member.ID,
		&member.Email,
		&member.Username,
		&member.FirstName,
		&member.LastName,
		&member.SubjectID,
		&member.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &member, nil
}
