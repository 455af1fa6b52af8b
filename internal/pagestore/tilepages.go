package pagestore

import (
	"database/sql"
	"errors"

	"github.com/tilequota/diskquota/internal/types"
)

// GetPageByKey looks up a tile page by its deterministic natural key.
// Returns (types.TilePage{}, false, nil) when absent — callers that need
// to lazily create the page on a cache miss use this to decide whether
// InsertTilePage is required.
func (tx *Tx) GetPageByKey(key string) (types.TilePage, bool, error) {
	var p types.TilePage
	row := tx.conn.QueryRowContext(tx.ctx,
		`SELECT id, tile_set_id, zoom, page_x, page_y, page_key, created_at_minutes
		 FROM tile_pages WHERE page_key = ?`, key,
	)
	err := row.Scan(&p.ID, &p.TileSetID, &p.Zoom, &p.X, &p.Y, &p.PageKey, &p.CreatedAtMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TilePage{}, false, nil
	}
	if err != nil {
		return types.TilePage{}, false, types.WrapStorageError("get tile page by key", err)
	}
	return p, true, nil
}

// InsertTilePage creates a tile page row and returns its assigned 64-bit
// id (SQLite rowid via INTEGER PRIMARY KEY AUTOINCREMENT).
func (tx *Tx) InsertTilePage(ref types.PageRef, createdAtMinutes int64) (int64, error) {
	res, err := tx.conn.ExecContext(tx.ctx,
		`INSERT INTO tile_pages (tile_set_id, zoom, page_x, page_y, page_key, created_at_minutes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ref.TileSetID, ref.Zoom, ref.X, ref.Y, ref.Key(), createdAtMinutes,
	)
	if err != nil {
		return 0, types.WrapStorageError("insert tile page", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, types.WrapStorageError("read inserted tile page id", err)
	}
	return id, nil
}

// GetTilePage looks up a tile page by its assigned id.
func (tx *Tx) GetTilePage(id int64) (types.TilePage, error) {
	var p types.TilePage
	row := tx.conn.QueryRowContext(tx.ctx,
		`SELECT id, tile_set_id, zoom, page_x, page_y, page_key, created_at_minutes
		 FROM tile_pages WHERE id = ?`, id,
	)
	err := row.Scan(&p.ID, &p.TileSetID, &p.Zoom, &p.X, &p.Y, &p.PageKey, &p.CreatedAtMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TilePage{}, types.ErrInvariant
	}
	if err != nil {
		return types.TilePage{}, types.WrapStorageError("get tile page", err)
	}
	return p, nil
}
