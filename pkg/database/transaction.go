package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type txContextKey string

const txStatusKey = txContextKey("txStatus")
const txKey = txContextKey("tx")

// Tx is the transaction surface used by multi-statement writes, such as
// the related-link set replacement. Commit and Rollback are idempotent
// so `defer tx.Rollback(ctx)` after a successful Commit is a no-op.
type Tx interface {
	IsOpen() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type transaction struct {
	*sqlx.Tx
	logger   ectologger.Logger
	isClosed bool
}

func newTx(tx *sqlx.Tx, logger ectologger.Logger) Tx {
	return &transaction{
		Tx:     tx,
		logger: logger,
	}
}

// GetTx returns the transaction already open on the context, or begins
// a new one and attaches it. A nested caller reuses the outer
// transaction; its Commit and Rollback become no-ops and the outer
// caller stays responsible for closing it.
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	ctxTx, ok := ctx.Value(txKey).(Tx)
	if ok && ctxTx != nil && ctxTx.IsOpen() {
		status, ok := ctx.Value(txStatusKey).(string)
		if ok && status == "open" {
			return ctx, ctxTx, nil
		}
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Errorf("error while beginning transaction")
		return ctx, nil, fmt.Errorf("error while beginning transaction")
	}

	wrapped := newTx(tx, logger)

	ctx = context.WithValue(ctx, txStatusKey, "open")
	ctx = context.WithValue(ctx, txKey, wrapped)
	return ctx, wrapped, nil
}

func (t *transaction) IsOpen() bool {
	return !t.isClosed
}

func (t *transaction) Rollback(ctx context.Context) error {
	if t.isClosed {
		return nil
	}

	status, ok := ctx.Value(txStatusKey).(string)
	if ok && status == "open" {
		return nil // owned by an outer caller
	}

	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while rolling back transaction")
		return fmt.Errorf("error while rolling back transaction")
	}

	t.isClosed = true
	return nil
}

func (t *transaction) Commit(ctx context.Context) error {
	if t.isClosed {
		return nil
	}

	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while committing transaction")
		return fmt.Errorf("error while committing transaction")
	}

	t.isClosed = true
	return nil
}
