// Package fake provides a deterministic in-memory TilePageCalculator and
// CacheDirectoryLocator for tests, standing in for a real database or
// external tile-page configuration service.
package fake

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/tilequota/diskquota/internal/types"
)

// Calculator is a deterministic, test-only TilePageCalculator. Create it
// with NewCalculator (the zero value's maps are nil, so AddLayer and
// SetTilesPerPage panic on it); configure it with AddLayer and
// SetTilesPerPage before use.
type Calculator struct {
	mu           sync.Mutex
	layers       map[string][]types.TileSet
	tilesPerPage map[string]*big.Int // keyed by tileSetID+"/"+zoom
}

// NewCalculator returns an empty Calculator.
func NewCalculator() *Calculator {
	return &Calculator{
		layers:       make(map[string][]types.TileSet),
		tilesPerPage: make(map[string]*big.Int),
	}
}

// AddLayer registers layer as known, reporting tileSets for it.
func (c *Calculator) AddLayer(layer string, tileSets ...types.TileSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers[layer] = append([]types.TileSet(nil), tileSets...)
}

// RemoveLayer makes layer unknown, simulating a layer that vanished from
// configuration between store opens.
func (c *Calculator) RemoveLayer(layer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.layers, layer)
}

// SetTilesPerPage configures the tiles-per-page the calculator reports
// for a given tile set and zoom level. Defaults to 1 if unset.
func (c *Calculator) SetTilesPerPage(tileSetID string, zoom byte, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tilesPerPage[tilesPerPageKey(tileSetID, zoom)] = big.NewInt(n)
}

func tilesPerPageKey(tileSetID string, zoom byte) string {
	return fmt.Sprintf("%s/%d", tileSetID, zoom)
}

func (c *Calculator) LayerNames(ctx context.Context) (map[string]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]struct{}, len(c.layers))
	for l := range c.layers {
		out[l] = struct{}{}
	}
	return out, nil
}

func (c *Calculator) TileSetsFor(ctx context.Context, layer string) ([]types.TileSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.layers[layer]
	out := make([]types.TileSet, len(ts))
	copy(out, ts)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Calculator) TilesPerPage(ctx context.Context, ts types.TileSet, zoom byte) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.tilesPerPage[tilesPerPageKey(ts.ID, zoom)]; ok {
		return new(big.Int).Set(n), nil
	}
	return big.NewInt(1), nil
}

func (c *Calculator) ToGridCoverage(ctx context.Context, ts types.TileSet, page types.TilePage) ([]types.GridCoverage, error) {
	return []types.GridCoverage{{
		Zoom: page.Zoom,
		MinX: page.X, MinY: page.Y,
		MaxX: page.X, MaxY: page.Y,
	}}, nil
}

// Locator is a fixed-path CacheDirectoryLocator for tests.
type Locator struct {
	Path string
}

func (l Locator) DefaultPath() (string, error) {
	return l.Path, nil
}
