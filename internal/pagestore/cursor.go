package pagestore

import (
	"database/sql"

	"github.com/tilequota/diskquota/internal/types"
)

// Cursor is an ordered, forward-only view over a secondary-index scan.
// It wraps *sql.Rows so callers get the same Next/Scan/Close shape as
// the rest of database/sql, without leaking the underlying query.
type Cursor struct {
	rows *sql.Rows
}

// Next advances the cursor. It returns false at end of the scan or on
// error; call Err afterward to distinguish the two.
func (c *Cursor) Next() bool {
	return c.rows.Next()
}

// Scan copies the current row's columns into dest, same contract as
// sql.Rows.Scan.
func (c *Cursor) Scan(dest ...any) error {
	if err := c.rows.Scan(dest...); err != nil {
		return types.WrapStorageError("scan cursor row", err)
	}
	return nil
}

// Err returns the error, if any, that stopped iteration.
func (c *Cursor) Err() error {
	if err := c.rows.Err(); err != nil {
		return types.WrapStorageError("iterate cursor", err)
	}
	return nil
}

// Close releases the underlying rows. Safe to call after exhausting the
// cursor via Next.
func (c *Cursor) Close() error {
	return c.rows.Close()
}
