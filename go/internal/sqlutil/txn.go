package sqlutil

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Beginner is satisfied by *pgxpool.Pool and pgx.Tx.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Run executes fn inside a transaction.
// If fn returns an error the tx rolls back, else it commits.
func Run[T any](
	ctx context.Context,
	db Beginner,
	opts pgx.TxOptions,
	newQueries func(pgx.Tx) *T,
	fn func(q *T) error,
) error {
	tx, err := db.BeginTx(ctx, opts) // BEGIN
	if err != nil {
		return err
	}
	q := newQueries(tx)
	if err := fn(q); err != nil {
		_ = tx.Rollback(ctx) // ROLLBACK
		return err
	}
	return tx.Commit(ctx) // COMMIT
}

// RunValue is Run for transactions that produce a value.
func RunValue[T, V any](
	ctx context.Context,
	db Beginner,
	opts pgx.TxOptions,
	newQueries func(pgx.Tx) *T,
	fn func(q *T) (V, error),
) (V, error) {
	var out V
	err := Run(ctx, db, opts, newQueries, func(q *T) error {
		v, err := fn(q)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return out, nil
}

// IsNoRows reports whether err means a query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
