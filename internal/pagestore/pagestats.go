package pagestore

import (
	"database/sql"
	"errors"

	"github.com/tilequota/diskquota/internal/types"
)

// GetPageStats looks up the stats row for a tile page. Returns
// (types.PageStats{}, false, nil) when absent: a freshly created page
// has no stats row until its first hit/fill-factor update.
func (tx *Tx) GetPageStats(pageID int64) (types.PageStats, bool, error) {
	var s types.PageStats
	row := tx.conn.QueryRowContext(tx.ctx,
		`SELECT id, page_id, fill_factor, frequency_per_minute, last_access_minutes, lru_score, lfu_score
		 FROM page_stats WHERE page_id = ?`, pageID,
	)
	err := row.Scan(&s.ID, &s.PageID, &s.FillFactor, &s.FrequencyOfUsePerMin, &s.LastAccessMinutes, &s.LRUScore, &s.LFUScore)
	if errors.Is(err, sql.ErrNoRows) {
		return types.PageStats{}, false, nil
	}
	if err != nil {
		return types.PageStats{}, false, types.WrapStorageError("get page stats", err)
	}
	return s, true, nil
}

// UpsertPageStats creates or replaces the stats row for a tile page.
// Callers always read-modify-write the full row, since the hit and
// fill-factor formulas both need the previous row, so there is no
// separate partial-update path.
func (tx *Tx) UpsertPageStats(s types.PageStats) error {
	_, err := tx.conn.ExecContext(tx.ctx,
		`INSERT INTO page_stats (page_id, fill_factor, frequency_per_minute, last_access_minutes, lru_score, lfu_score)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(page_id) DO UPDATE SET
		   fill_factor = excluded.fill_factor,
		   frequency_per_minute = excluded.frequency_per_minute,
		   last_access_minutes = excluded.last_access_minutes,
		   lru_score = excluded.lru_score,
		   lfu_score = excluded.lfu_score`,
		s.PageID, s.FillFactor, s.FrequencyOfUsePerMin, s.LastAccessMinutes, s.LRUScore, s.LFUScore,
	)
	if err != nil {
		return types.WrapStorageError("upsert page stats", err)
	}
	return nil
}

// ScanByPolicy opens an ascending cursor over page_stats ordered by the
// score column the policy selects, joined against tile_pages so callers
// can filter by tile-set membership without a second round trip. Only
// rows with fill_factor > 0 are included — a page with nothing left on
// disk is not an eviction candidate.
func (tx *Tx) ScanByPolicy(policy types.Policy) (*Cursor, error) {
	column := "lru_score"
	if policy == types.PolicyLFU {
		column = "lfu_score"
	}
	rows, err := tx.conn.QueryContext(tx.ctx,
		`SELECT tp.id, tp.tile_set_id, tp.zoom, tp.page_x, tp.page_y, tp.page_key, tp.created_at_minutes,
		        ps.id, ps.fill_factor, ps.frequency_per_minute, ps.last_access_minutes, ps.lru_score, ps.lfu_score
		 FROM page_stats ps
		 JOIN tile_pages tp ON tp.id = ps.page_id
		 WHERE ps.fill_factor > 0
		 ORDER BY ps.`+column+`, ps.id`,
	)
	if err != nil {
		return nil, types.WrapStorageError("scan page stats by policy", err)
	}
	return &Cursor{rows: rows}, nil
}

// ScanRow decodes one row yielded by a Cursor obtained from ScanByPolicy.
func ScanRow(c *Cursor) (types.TilePage, types.PageStats, error) {
	var p types.TilePage
	var s types.PageStats
	err := c.Scan(
		&p.ID, &p.TileSetID, &p.Zoom, &p.X, &p.Y, &p.PageKey, &p.CreatedAtMinutes,
		&s.ID, &s.FillFactor, &s.FrequencyOfUsePerMin, &s.LastAccessMinutes, &s.LRUScore, &s.LFUScore,
	)
	s.PageID = p.ID
	return p, s, err
}
