package pagestore

// schema is the full DDL for the disk-quota accounting store: one
// embedded const string applied with IF NOT EXISTS semantics at Open
// time. There is no migration framework here; schema evolution is out
// of scope for this core.
const schema = `
-- Tile sets: one row per (layer, grid, format, parameters) tuple, plus
-- the sentinel row id=___GLOBAL_QUOTA___.
CREATE TABLE IF NOT EXISTS tile_sets (
    id              TEXT PRIMARY KEY,
    layer_name      TEXT NOT NULL,
    gridset_id      TEXT NOT NULL DEFAULT '',
    format          TEXT NOT NULL DEFAULT '',
    parameters_hash TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tile_sets_layer ON tile_sets(layer_name);

-- Tile pages: lazily created on the first mutation that references them.
-- page_key is the deterministic tileSetID/zoom/x/y natural key.
CREATE TABLE IF NOT EXISTS tile_pages (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    tile_set_id        TEXT NOT NULL,
    zoom               INTEGER NOT NULL,
    page_x             INTEGER NOT NULL,
    page_y             INTEGER NOT NULL,
    page_key           TEXT NOT NULL UNIQUE,
    created_at_minutes INTEGER NOT NULL,
    FOREIGN KEY (tile_set_id) REFERENCES tile_sets(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tile_pages_tile_set ON tile_pages(tile_set_id);

-- Page stats: at most one row per tile page, created lazily on first
-- stats update.
CREATE TABLE IF NOT EXISTS page_stats (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id               INTEGER NOT NULL UNIQUE,
    fill_factor           REAL NOT NULL DEFAULT 0,
    frequency_per_minute  REAL NOT NULL DEFAULT 0,
    last_access_minutes   INTEGER NOT NULL DEFAULT 0,
    lru_score             REAL NOT NULL DEFAULT 0,
    lfu_score             REAL NOT NULL DEFAULT 0,
    FOREIGN KEY (page_id) REFERENCES tile_pages(id) ON DELETE CASCADE
);

-- Ascending scans over these two indexes are the eviction-candidate
-- query. The id tiebreak keeps the scan order deterministic when two
-- rows share the same score.
CREATE INDEX IF NOT EXISTS idx_page_stats_lru ON page_stats(lru_score, id);
CREATE INDEX IF NOT EXISTS idx_page_stats_lfu ON page_stats(lfu_score, id);

-- Quota: exactly one row per tile set (invariant 1), plus the sentinel
-- row whose tile_set_id is the global sentinel.
CREATE TABLE IF NOT EXISTS quotas (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    tile_set_id TEXT NOT NULL UNIQUE,
    bytes       TEXT NOT NULL DEFAULT '0',
    FOREIGN KEY (tile_set_id) REFERENCES tile_sets(id) ON DELETE CASCADE
);
`
