package quotastore

import (
	"math/big"

	"github.com/tilequota/diskquota/internal/pagestore"
	"github.com/tilequota/diskquota/internal/types"
)

// cascadeDeleteLayer runs within an already-open transaction: for every
// tile set of layer, subtract its freed bytes from the global quota and
// delete the tile set (foreign-key cascade removes its quota, tile
// pages, and page stats rows).
func (s *Store) cascadeDeleteLayer(tx *pagestore.Tx, layer string) error {
	ids, err := tx.ListTileSetIDsByLayer(layer)
	if err != nil {
		return err
	}

	for _, id := range ids {
		freed, err := tx.GetQuota(id)
		var freedBytes *big.Int
		switch {
		case err == types.ErrNoSuchTileSet:
			s.logWarn("cascade delete: tile set %q has no quota row, treating freed amount as zero", id)
			freedBytes = big.NewInt(0)
		case err != nil:
			return err
		default:
			freedBytes = freed.Bytes
		}

		global, err := tx.GetQuota(types.GlobalTileSetID)
		if err == types.ErrNoSuchTileSet {
			return types.ErrStoreNotInitialized
		}
		if err != nil {
			return err
		}

		if err := tx.DeleteTileSet(id); err != nil {
			return err
		}

		newGlobal := new(big.Int).Sub(global.Bytes, freedBytes)
		if err := tx.SetQuota(types.GlobalTileSetID, newGlobal); err != nil {
			return err
		}
	}

	return nil
}
