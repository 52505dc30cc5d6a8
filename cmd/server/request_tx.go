package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "accessops/pkg/domain-errors"
	txcontext "accessops/pkg/platform/tx"
)

const defaultRequestTxTimeout = 5 * time.Second

// requestPostgresTx runs a request decision inside one database transaction.
// The transaction rides the context so the request store and the audit store
// join the same commit.
type requestPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newRequestPostgresTx(db *sql.DB) *requestPostgresTx {
	return &requestPostgresTx{db: db}
}

func (t *requestPostgresTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultRequestTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	return tx.Commit()
}
