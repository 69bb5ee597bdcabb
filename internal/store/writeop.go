package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteOp scopes a single database write within a transaction that rolls
// back unless explicitly marked successful. Mirrors the try-with-resources
// idiom the sync engine needs: open the op, run one or more statements
// against it, call SetSuccess only once every statement succeeded, then
// Close — which commits on success and rolls back otherwise. Adapted from
// the teacher's begin/exec/commit-or-rollback shape in BatchUpsert,
// generalized into a reusable handle so the sync engine can hold one open
// across several provider page fetches.
type WriteOp struct {
	tx        *sql.Tx
	succeeded bool
}

// beginWriteOp starts a new transaction-scoped write operation.
func beginWriteOp(ctx context.Context, conn *sql.DB) (*WriteOp, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin write op: %w", err)
	}

	return &WriteOp{tx: tx}, nil
}

// SetSuccess marks the operation as having completed correctly. Must be
// called before Close for the transaction to commit instead of rolling
// back.
func (w *WriteOp) SetSuccess() {
	w.succeeded = true
}

// Close commits the transaction if SetSuccess was called, otherwise rolls
// it back. Safe to call exactly once.
func (w *WriteOp) Close() error {
	if w.succeeded {
		if err := w.tx.Commit(); err != nil {
			return fmt.Errorf("store: commit write op: %w", err)
		}

		return nil
	}

	if err := w.tx.Rollback(); err != nil {
		return fmt.Errorf("store: rollback write op: %w", err)
	}

	return nil
}
