// Package calculator declares the external collaborators the disk-quota
// store consumes but does not implement: the tile page calculator and
// the cache directory locator. Both are treated as oracles — this
// package exists only so the rest of the module has a concrete Go type
// to compile against.
package calculator

import (
	"context"
	"math/big"

	"github.com/tilequota/diskquota/internal/types"
)

// TilePageCalculator reports, for a tile set and zoom level, the set of
// tile sets belonging to a layer and the tile-count-per-page.
type TilePageCalculator interface {
	// LayerNames returns the set of layers the calculator currently knows
	// about.
	LayerNames(ctx context.Context) (map[string]struct{}, error)
	// TileSetsFor returns every tile set the calculator reports for layer.
	TileSetsFor(ctx context.Context, layer string) ([]types.TileSet, error)
	// TilesPerPage returns the number of tile slots a page of ts holds at
	// zoom, as an arbitrary-precision integer.
	TilesPerPage(ctx context.Context, ts types.TileSet, zoom byte) (*big.Int, error)
	// ToGridCoverage maps a tile page back to grid-coverage rectangles.
	ToGridCoverage(ctx context.Context, ts types.TileSet, page types.TilePage) ([]types.GridCoverage, error)
}

// CacheDirectoryLocator supplies the on-disk cache root the store opens
// its persistent engine beneath.
type CacheDirectoryLocator interface {
	DefaultPath() (string, error)
}
