package pagestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tilequota/diskquota/internal/types"
)

// These methods read through the engine's dedicated read-only connection
// rather than through a Tx, for the two Store Facade operations that are
// allowed to bypass the Transaction Worker entirely (TileSets,
// TilesForPage). SQLite readers never block behind a writer in WAL
// mode, so this gives a consistent-enough snapshot without taking the
// write lock.

// ListTileSets returns every tile set except the sentinel.
func (e *Engine) ListTileSets(ctx context.Context) ([]types.TileSet, error) {
	rows, err := e.readDB.QueryContext(ctx,
		`SELECT id, layer_name, gridset_id, format, parameters_hash
		 FROM tile_sets WHERE id != ? ORDER BY id`, types.GlobalTileSetID,
	)
	if err != nil {
		return nil, types.WrapStorageError("list tile sets", err)
	}
	defer rows.Close()

	var out []types.TileSet
	for rows.Next() {
		var ts types.TileSet
		if err := rows.Scan(&ts.ID, &ts.LayerName, &ts.GridSetID, &ts.Format, &ts.ParametersHash); err != nil {
			return nil, types.WrapStorageError("scan tile set", err)
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapStorageError("iterate tile sets", err)
	}
	return out, nil
}

// GetTileSetRead looks up a tile set by id through the read-only
// connection.
func (e *Engine) GetTileSetRead(ctx context.Context, id string) (types.TileSet, error) {
	var ts types.TileSet
	row := e.readDB.QueryRowContext(ctx,
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
