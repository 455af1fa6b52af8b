package quotastore

import (
	"context"
	"math/big"

	"github.com/tilequota/diskquota/internal/pagestore"
	"github.com/tilequota/diskquota/internal/types"
)

// reconcile is the Startup Reconciler: seeds the sentinel quota row if
// absent, removes tile sets for layers the calculator no longer
// reports, and creates tile sets for layers it newly reports. Runs as a
// single unit of work submitted from Open, before Open returns the
// Store to its caller.
func (s *Store) reconcile(ctx context.Context) error {
	tx, err := s.engine.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Abort()
		}
	}()

	if err := s.seedSentinel(tx); err != nil {
		return err
	}

	known, err := s.calc.LayerNames(ctx)
	if err != nil {
		return err
	}

	present, err := tx.ListLayerNames()
	if err != nil {
		return err
	}

	for _, layer := range present {
		if layer == types.GlobalTileSetID {
			continue
		}
		if _, ok := known[layer]; ok {
			continue
		}
		if err := s.cascadeDeleteLayer(tx, layer); err != nil {
			// Preserve source behavior: a per-layer cascade-delete
			// failure is logged and the reconciliation loop continues;
			// the surrounding transaction still commits at the end.
			s.logWarn("reconcile: cascade delete of layer %q failed: %v", layer, err)
		}
	}

	for layer := range known {
		tileSets, err := s.calc.TileSetsFor(ctx, layer)
		if err != nil {
			return err
		}
		for _, ts := range tileSets {
			if _, err := tx.GetTileSet(ts.ID); err == nil {
				continue
			} else if err != types.ErrNoSuchTileSet {
				return err
			}
			if err := tx.InsertTileSet(ts); err != nil {
				return err
			}
			if err := tx.InsertQuota(types.ZeroQuota(ts.ID)); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) seedSentinel(tx *pagestore.Tx) error {
	if _, err := tx.GetQuota(types.GlobalTileSetID); err == nil {
		return nil
	} else if err != types.ErrNoSuchTileSet {
		return err
	}

	if err := tx.InsertTileSet(types.TileSet{ID: types.GlobalTileSetID, LayerName: types.GlobalTileSetID}); err != nil {
		return err
	}
	return tx.InsertQuota(types.Quota{TileSetID: types.GlobalTileSetID, Bytes: big.NewInt(0)})
}
