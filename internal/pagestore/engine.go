// Package pagestore is the Persistent Store Engine (PSE): an embedded,
// transactional key/value-shaped store built on database/sql plus the
// pure-Go, cgo-free SQLite driver github.com/ncruces/go-sqlite3. It
// provides typed primary indexes, ordered secondary-index cursors, and
// snapshot-isolated transactions.
package pagestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/tilequota/diskquota/internal/types"
)

// fileName is the single SQLite database file the engine owns within its
// directory. WAL/SHM side files accompany it; both are opaque to
// callers.
const fileName = "pagestore.db"

// Engine owns the on-disk environment rooted at a directory and exposes
// transactions over it. All mutating access is expected to come through
// exactly one *sql.DB connection (enforced via SetMaxOpenConns(1)) so
// that BEGIN IMMEDIATE transactions never contend with each other inside
// the process; the Transaction Worker (internal/txworker) is what
// actually linearizes callers above this layer.
type Engine struct {
	dir     string
	writeDB *sql.DB
	readDB  *sql.DB
}

// Open initializes the PSE environment rooted at dir, creating the
// directory and the schema if absent.
func Open(ctx context.Context, dir string) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.WrapStorageError("create store directory", err)
	}

	dbPath := filepath.Join(dir, fileName)

	writeDSN := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath,
	)
	writeDB, err := sql.Open("sqlite3", writeDSN)
	if err != nil {
		return nil, types.WrapStorageError("open write connection", err)
	}
	// A single writer connection is a belt-and-suspenders guard: the
	// Transaction Worker already serializes every mutating call, but
	// pinning the pool to one connection means a stray direct call can
	// never open a second concurrent write transaction against the file.
	writeDB.SetMaxOpenConns(1)

	readDSN := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", dbPath)
	readDB, err := sql.Open("sqlite3", readDSN)
	if err != nil {
		_ = writeDB.Close()
		return nil, types.WrapStorageError("open read connection", err)
	}

	if _, err := writeDB.ExecContext(ctx, schema); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, types.WrapStorageError("apply schema", err)
	}

	return &Engine{dir: dir, writeDB: writeDB, readDB: readDB}, nil
}

// Dir returns the directory the engine is rooted at.
func (e *Engine) Dir() string {
	return e.dir
}

// FilePath returns the path to the main database file, for the external
// tamper watcher (internal/quotastore/watch.go) to observe.
func (e *Engine) FilePath() string {
	return filepath.Join(e.dir, fileName)
}

// Close releases both connection pools. Durable commit of prior
// transactions already happened at Commit time; Close does not flush
// anything beyond what SQLite's WAL checkpointing already guarantees.
func (e *Engine) Close() error {
	writeErr := e.writeDB.Close()
	readErr := e.readDB.Close()
	if writeErr != nil {
		return types.WrapStorageError("close write connection", writeErr)
	}
	if readErr != nil {
		return types.WrapStorageError("close read connection", readErr)
	}
	return nil
}

// ReadDB exposes the read-only pool for the facade's no-transaction
// reads (TileSets, TilesForPage), which may be served from a
// readable-without-transaction view since they never need write-lock
// semantics.
func (e *Engine) ReadDB() *sql.DB {
	return e.readDB
}
