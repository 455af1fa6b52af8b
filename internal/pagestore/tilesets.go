package pagestore

import (
	"database/sql"
	"errors"

	"github.com/tilequota/diskquota/internal/types"
)

// InsertTileSet creates a tile set row. Callers are expected to have
// already decided the id (the deterministic tile-set id, or the global
// sentinel); the PSE does not generate tile-set ids itself.
func (tx *Tx) InsertTileSet(ts types.TileSet) error {
	_, err := tx.conn.ExecContext(tx.ctx,
		`INSERT INTO tile_sets (id, layer_name, gridset_id, format, parameters_hash)
		 VALUES (?, ?, ?, ?, ?)`,
		ts.ID, ts.LayerName, ts.GridSetID, ts.Format, ts.ParametersHash,
	)
	if err != nil {
		return types.WrapStorageError("insert tile set", err)
	}
	return nil
}

// GetTileSet looks up a tile set by id. Returns types.ErrNoSuchTileSet
// when absent.
func (tx *Tx) GetTileSet(id string) (types.TileSet, error) {
	var ts types.TileSet
	row := tx.conn.QueryRowContext(tx.ctx,
		`SELECT id, layer_name, gridset_id, format, parameters_hash
		 FROM tile_sets WHERE id = ?`, id,
	)
	err := row.Scan(&ts.ID, &ts.LayerName, &ts.GridSetID, &ts.Format, &ts.ParametersHash)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TileSet{}, types.ErrNoSuchTileSet
	}
	if err != nil {
		return types.TileSet{}, types.WrapStorageError("get tile set", err)
	}
	return ts, nil
}

// ListTileSetIDsByLayer returns the ids of every tile set currently
// recorded for layer, used by the reconciler to diff against the
// calculator's live report.
func (tx *Tx) ListTileSetIDsByLayer(layer string) ([]string, error) {
	rows, err := tx.conn.QueryContext(tx.ctx,
		`SELECT id FROM tile_sets WHERE layer_name = ? ORDER BY id`, layer,
	)
	if err != nil {
		return nil, types.WrapStorageError("list tile sets by layer", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.WrapStorageError("scan tile set id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapStorageError("iterate tile sets", err)
	}
	return ids, nil
}

// ListLayerNames returns the distinct layer names with at least one
// recorded tile set, used by the reconciler to find layers that vanished
// from the calculator.
func (tx *Tx) ListLayerNames() ([]string, error) {
	rows, err := tx.conn.QueryContext(tx.ctx,
		`SELECT DISTINCT layer_name FROM tile_sets ORDER BY layer_name`,
	)
	if err != nil {
		return nil, types.WrapStorageError("list layer names", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, types.WrapStorageError("scan layer name", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapStorageError("iterate layer names", err)
	}
	return names, nil
}

// DeleteTileSet removes a tile set row. Foreign-key cascade removes its
// tile pages, page stats, and quota row in the same statement: SQLite
// enforces ON DELETE CASCADE only when foreign_keys is on, which Open
// sets on every write connection.
func (tx *Tx) DeleteTileSet(id string) error {
	_, err := tx.conn.ExecContext(tx.ctx, `DELETE FROM tile_sets WHERE id = ?`, id)
	if err != nil {
		return types.WrapStorageError("delete tile set", err)
	}
	return nil
}
