// Package types defines the core record types of the tile-cache
// disk-quota accounting store: TileSet, TilePage, PageStats, and Quota,
// plus the small value types the store's public operations exchange.
package types

import (
	"fmt"
	"math/big"
)

// GlobalTileSetID is the sentinel tile set and quota id that mirrors the
// sum of every other quota row.
const GlobalTileSetID = "___GLOBAL_QUOTA___"

// Policy selects the ordering used by an eviction-candidate scan.
type Policy int

const (
	// PolicyLRU scans PageStats ascending by LRUScore (oldest access first).
	PolicyLRU Policy = iota
	// PolicyLFU scans PageStats ascending by LFUScore (least-used first).
	PolicyLFU
)

func (p Policy) String() string {
	switch p {
	case PolicyLRU:
		return "lru"
	case PolicyLFU:
		return "lfu"
	default:
		return "unknown"
	}
}

// TileSet is a concrete (layer, grid, format, parameters) tuple whose
// cached tiles share storage accounting.
type TileSet struct {
	ID             string
	LayerName      string
	GridSetID      string
	Format         string
	ParametersHash string
}

// IsGlobal reports whether t is the sentinel tile set.
func (t TileSet) IsGlobal() bool {
	return t.ID == GlobalTileSetID
}

// PageRef identifies a tile page by its natural coordinates, before any
// 64-bit id has been assigned to it.
type PageRef struct {
	TileSetID string
	Zoom      byte
	X, Y      int64
}

// Key returns the deterministic page-key used by the PageByKey index.
func (p PageRef) Key() string {
	return fmt.Sprintf("%s/%d/%d/%d", p.TileSetID, p.Zoom, p.X, p.Y)
}

// TilePage is a rectangular block of tiles at one zoom level, the unit of
// eviction.
type TilePage struct {
	ID               int64
	TileSetID        string
	Zoom             byte
	X, Y             int64
	PageKey          string
	CreatedAtMinutes int64
}

// Ref returns the natural-key reference for p.
func (p TilePage) Ref() PageRef {
	return PageRef{TileSetID: p.TileSetID, Zoom: p.Zoom, X: p.X, Y: p.Y}
}

// PageStats carries usage statistics for one TilePage.
type PageStats struct {
	ID                   int64
	PageID               int64
	FillFactor           float64
	FrequencyOfUsePerMin float64
	LastAccessMinutes    int64
	LRUScore             float64
	LFUScore             float64
}

// Quota is the usage-accounting row for one TileSet (or the sentinel).
type Quota struct {
	ID        int64
	TileSetID string
	Bytes     *big.Int
}

// ZeroQuota builds a Quota row with bytes=0 for the given tile set id.
func ZeroQuota(tileSetID string) Quota {
	return Quota{TileSetID: tileSetID, Bytes: big.NewInt(0)}
}

// GridCoverage is one rectangle of a grid-coverage result, as returned by
// the external tile-page calculator's toGridCoverage contract.
type GridCoverage struct {
	Zoom       byte
	MinX, MinY int64
	MaxX, MaxY int64
}

// QuotaPagePayload is one (page, tiles-added) entry passed to
// addToQuotaAndTileCounts.
type QuotaPagePayload struct {
	Page          PageRef
	NumTilesAdded *big.Int
}

// HitPayload is one (page, hits, access-time) entry passed to
// addHitsAndSetAccessTime.
type HitPayload struct {
	Page                 PageRef
	NumHits              int64
	LastAccessTimeMillis int64
}
