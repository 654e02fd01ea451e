package audit

import (
	"context"
	"database/sql"

	dErrors "flock/pkg/domain-errors"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_event (occurred_at, actor, action, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5)`,
		event.Timestamp, event.Actor, string(event.Action), event.EntityID, event.Detail,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "appending audit event failed")
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, actor, action, entity_id, detail
		FROM audit_event
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing audit events failed")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var action string
		if err := rows.Scan(&e.Timestamp, &e.Actor, &action, &e.EntityID, &e.Detail); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "scanning audit event failed")
		}
		e.Action = Action(action)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing audit events failed")
	}
	return events, nil
}
