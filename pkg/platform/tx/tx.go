// Package tx carries an ambient *sql.Tx through context so stores can join a
// transaction opened by the caller without changing their signatures.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

// WithTx returns a context carrying the given transaction.
func WithTx(ctx context.Context, t *sql.Tx) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// From extracts the transaction from the context, if one is present.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return t, ok
}
