package quotastore

import (
	"context"

	"github.com/tilequota/diskquota/internal/pagestore"
	"github.com/tilequota/diskquota/internal/types"
)

// AddHitsAndSetAccessTime records hits and refreshes access time,
// asynchronously, eventually yielding the updated []types.PageStats
// (one per payload whose tile set still exists; a payload whose page
// hasn't been materialized yet gets one created, same as
// applyPagePayload).
func (s *Store) AddHitsAndSetAccessTime(ctx context.Context, payloads []types.HitPayload) *Future {
	return s.submitFuture(ctx, func(ctx context.Context) (any, error) {
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

		var updated []types.PageStats
		for _, payload := range payloads {
			stats, ok, err := s.applyHit(tx, payload)
			if err != nil {
				return nil, err
			}
			if ok {
				updated = append(updated, stats)
			}
		}

		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return updated, nil
	})
}

func (s *Store) applyHit(tx *pagestore.Tx, payload types.HitPayload) (types.PageStats, bool, error) {
	if _, err := tx.GetTileSet(payload.Page.TileSetID); err == types.ErrNoSuchTileSet {
		s.logInfo("addHitsAndSetAccessTime: tile set %q no longer exists, skipping page %q", payload.Page.TileSetID, payload.Page.Key())
		return types.PageStats{}, false, nil
	} else if err != nil {
		return types.PageStats{}, false, err
	}

	page, found, err := tx.GetPageByKey(payload.Page.Key())
	if err != nil {
		return types.PageStats{}, false, err
	}
	if !found {
		pageID, err := tx.InsertTilePage(payload.Page, s.nowMinutes())
		if err != nil {
			return types.PageStats{}, false, err
		}
		page, err = tx.GetTilePage(pageID)
		if err == types.ErrInvariant {
			s.logInvariant("addHitsAndSetAccessTime: tile page %d vanished immediately after insert", pageID)
			return types.PageStats{}, false, err
		}
		if err != nil {
			return types.PageStats{}, false, err
		}
	}

	stats, found, err := tx.GetPageStats(page.ID)
	if err != nil {
		return types.PageStats{}, false, err
	}
	if !found {
		stats = types.PageStats{PageID: page.ID}
	}

	lastAccessMinutes := payload.LastAccessTimeMillis / 60000

	prevAgeMinutes := stats.LastAccessMinutes - page.CreatedAtMinutes
	if prevAgeMinutes < 1 {
		prevAgeMinutes = 1
	}
	prevHits := stats.FrequencyOfUsePerMin * float64(prevAgeMinutes)

	ageMinutes := lastAccessMinutes - page.CreatedAtMinutes
	if ageMinutes < 1 {
		ageMinutes = 1
	}

	stats.FrequencyOfUsePerMin = (prevHits + float64(payload.NumHits)) / float64(ageMinutes)
	stats.LastAccessMinutes = lastAccessMinutes
	stats.LRUScore = float64(-lastAccessMinutes)
	stats.LFUScore = stats.FrequencyOfUsePerMin

	if err := tx.UpsertPageStats(stats); err != nil {
		return types.PageStats{}, false, err
	}
	return stats, true, nil
}
