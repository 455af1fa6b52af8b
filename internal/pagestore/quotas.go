package pagestore

import (
	"database/sql"
	"errors"
	"math/big"

	"github.com/tilequota/diskquota/internal/types"
)

// GetQuota looks up the quota row for a tile set (or the global
// sentinel). Returns types.ErrNoSuchTileSet when absent.
func (tx *Tx) GetQuota(tileSetID string) (types.Quota, error) {
	var id int64
	var bytesText string
	row := tx.conn.QueryRowContext(tx.ctx,
		`SELECT id, bytes FROM quotas WHERE tile_set_id = ?`, tileSetID,
	)
	err := row.Scan(&id, &bytesText)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Quota{}, types.ErrNoSuchTileSet
	}
	if err != nil {
		return types.Quota{}, types.WrapStorageError("get quota", err)
	}
	bytes, ok := new(big.Int).SetString(bytesText, 10)
	if !ok {
		return types.Quota{}, types.WrapStorageError("get quota", errors.New("corrupt bytes column: "+bytesText))
	}
	return types.Quota{ID: id, TileSetID: tileSetID, Bytes: bytes}, nil
}

// InsertQuota creates a zeroed (or given) quota row for a tile set. Used
// both for the startup sentinel seed and for newly reconciled tile sets.
func (tx *Tx) InsertQuota(q types.Quota) error {
	bytes := q.Bytes
	if bytes == nil {
		bytes = big.NewInt(0)
	}
	_, err := tx.conn.ExecContext(tx.ctx,
		`INSERT INTO quotas (tile_set_id, bytes) VALUES (?, ?)`,
		q.TileSetID, bytes.Text(10),
	)
	if err != nil {
		return types.WrapStorageError("insert quota", err)
	}
	return nil
}

// AddToQuota adds delta (which may be negative) to the quota row's
// bytes, using big.Int arithmetic so arbitrarily large cache sizes never
// overflow a machine word. Returns the resulting value.
func (tx *Tx) AddToQuota(tileSetID string, delta *big.Int) (*big.Int, error) {
	q, err := tx.GetQuota(tileSetID)
	if err != nil {
		return nil, err
	}
	next := new(big.Int).Add(q.Bytes, delta)
	_, err = tx.conn.ExecContext(tx.ctx,
		`UPDATE quotas SET bytes = ? WHERE tile_set_id = ?`,
		next.Text(10), tileSetID,
	)
	if err != nil {
		return nil, types.WrapStorageError("update quota", err)
	}
	return next, nil
}

// SetQuota overwrites the quota row's bytes outright, used by the
// layer cascade delete to write back the recomputed global quota.
func (tx *Tx) SetQuota(tileSetID string, bytes *big.Int) error {
	_, err := tx.conn.ExecContext(tx.ctx,
		`UPDATE quotas SET bytes = ? WHERE tile_set_id = ?`,
		bytes.Text(10), tileSetID,
	)
	if err != nil {
		return types.WrapStorageError("set quota", err)
	}
	return nil
}
