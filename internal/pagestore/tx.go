package pagestore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/tilequota/diskquota/internal/types"
)

// Tx is one transaction against the engine: a dedicated connection with
// an active BEGIN IMMEDIATE transaction. Every Tx must be paired with
// exactly one Commit or Abort call, scoped to the single unit of work
// that created it.
type Tx struct {
	ctx    context.Context
	conn   *sql.Conn
	closed bool
}

// Begin acquires a dedicated connection from the engine's write pool and
// starts a BEGIN IMMEDIATE transaction, retrying on SQLITE_BUSY with
// bounded exponential backoff: BEGIN IMMEDIATE acquires the write lock
// eagerly so that two would-be writers fail fast at Begin rather than
// deadlocking partway through a transaction.
func (e *Engine) Begin(ctx context.Context) (*Tx, error) {
	conn, err := e.writeDB.Conn(ctx)
	if err != nil {
		return nil, types.WrapStorageError("acquire connection", err)
	}

	if err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond); err != nil {
		_ = conn.Close()
		return nil, types.WrapStorageError("begin transaction", err)
	}

	return &Tx{ctx: ctx, conn: conn}, nil
}

func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, attempts int, backoff time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if !isBusyError(err) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(1<<uint(i))):
		}
	}
	return lastErr
}

func isBusyError(err error) bool {
	return strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked")
}

// Commit commits the transaction and releases its connection. Calling
// Commit on an already-closed Tx is a programming error and panics — the
// unit of work that owns a Tx is always responsible for calling exactly
// one of Commit/Abort on any code path, and the txworker unit-of-work
// runner recovers this panic rather than letting it escape.
func (tx *Tx) Commit() error {
	if tx.closed {
		panic("pagestore: Commit called on an already-closed transaction")
	}
	tx.closed = true
	_, err := tx.conn.ExecContext(tx.ctx, "COMMIT")
	closeErr := tx.conn.Close()
	if err != nil {
		return types.WrapStorageError("commit", err)
	}
	if closeErr != nil {
		return types.WrapStorageError("release connection after commit", closeErr)
	}
	return nil
}

// Abort rolls back the transaction and releases its connection. Safe to
// call on an already-closed Tx (no-op), so callers can defer tx.Abort()
// unconditionally after a successful Commit.
func (tx *Tx) Abort() error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	// Use a background context: an aborting transaction must roll back
	// even if the caller's context was what triggered the abort.
	_, err := tx.conn.ExecContext(context.Background(), "ROLLBACK")
	_ = tx.conn.Close()
	if err != nil {
		return types.WrapStorageError("rollback", err)
	}
	return nil
}
