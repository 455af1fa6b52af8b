package quotastore

import (
	"context"
	"math/big"

	"github.com/tilequota/diskquota/internal/pagestore"
	"github.com/tilequota/diskquota/internal/types"
)

// AddToQuotaAndTileCounts records a quota delta and per-page tile-count
// updates, synchronously.
func (s *Store) AddToQuotaAndTileCounts(ctx context.Context, tileSetID string, quotaDiff *big.Int, payloads []types.QuotaPagePayload) error {
	_, err := s.worker.SubmitAndWait(ctx, func(ctx context.Context) (any, error) {
		return nil, s.addToQuotaAndTileCounts(ctx, tileSetID, quotaDiff, payloads)
	})
	return err
}

func (s *Store) addToQuotaAndTileCounts(ctx context.Context, tileSetID string, quotaDiff *big.Int, payloads []types.QuotaPagePayload) error {
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

	ts, err := tx.GetTileSet(tileSetID)
	if err == types.ErrNoSuchTileSet {
		s.logInfo("addToQuotaAndTileCounts: tile set %q no longer exists, skipping", tileSetID)
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.AddToQuota(tileSetID, quotaDiff); err != nil {
		return err
	}
	if _, err := tx.AddToQuota(types.GlobalTileSetID, quotaDiff); err != nil {
		return err
	}

	for _, payload := range payloads {
		if err := s.applyPagePayload(ctx, tx, ts, payload); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) applyPagePayload(ctx context.Context, tx *pagestore.Tx, ts types.TileSet, payload types.QuotaPagePayload) error {
	page, found, err := tx.GetPageByKey(payload.Page.Key())
	if err != nil {
		return err
	}

	var pageID int64
	if !found {
		pageID, err = tx.InsertTilePage(payload.Page, s.nowMinutes())
		if err != nil {
			return err
		}
		if err := tx.UpsertPageStats(types.PageStats{PageID: pageID, FillFactor: 0}); err != nil {
			return err
		}
	} else {
		pageID = page.ID
	}

	stats, found, err := tx.GetPageStats(pageID)
	if err != nil {
		return err
	}
	if !found {
		stats = types.PageStats{PageID: pageID}
	}

	tilesPerPage, err := s.calc.TilesPerPage(ctx, ts, payload.Page.Zoom)
	if err != nil {
		return err
	}

	delta := ratio(payload.NumTilesAdded, tilesPerPage)
	stats.FillFactor = clamp01(stats.FillFactor + delta)

	return tx.UpsertPageStats(stats)
}

func ratio(numerator, denominator *big.Int) float64 {
	if denominator.Sign() == 0 {
		return 0
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(numerator),
		new(big.Float).SetInt(denominator),
	).Float64()
	return f
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// SetTruncated marks a page's fill factor zero, returning the updated
// PageStats or nil if no stats row exists.
func (s *Store) SetTruncated(ctx context.Context, page types.TilePage) (*types.PageStats, error) {
	v, err := s.worker.SubmitAndWait(ctx, func(ctx context.Context) (any, error) {
		tx, err := s.engine.Begin(ctx)
		if err != nil {
			return nil, err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Abort()
			}
		}()

		stats, found, err := tx.GetPageStats(page.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			if err := tx.Commit(); err != nil {
				return nil, err
			}
			committed = true
			return (*types.PageStats)(nil), nil
		}

		stats.FillFactor = 0
		if err := tx.UpsertPageStats(stats); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return &stats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.PageStats), nil
}
