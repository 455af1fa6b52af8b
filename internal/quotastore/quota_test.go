package quotastore

import (
	"context"
	"math/big"
	"testing"

	"github.com/tilequota/diskquota/internal/calculator/fake"
	"github.com/tilequota/diskquota/internal/types"
)

func TestAddToQuotaAndTileCountsCreatesPageAndFillFactor(t *testing.T) {
	calc := fake.NewCalculator()
	calc.AddLayer("roads", types.TileSet{ID: "roads-a", LayerName: "roads"})
	calc.SetTilesPerPage("roads-a", 4, 10)
	s := openTestStore(t, calc)
	ctx := context.Background()

	page := types.PageRef{TileSetID: "roads-a", Zoom: 4, X: 1, Y: 1}
	err := s.AddToQuotaAndTileCounts(ctx, "roads-a", big.NewInt(1000), []types.QuotaPagePayload{
		{Page: page, NumTilesAdded: big.NewInt(5)},
	})
	if err != nil {
		t.Fatalf("AddToQuotaAndTileCounts: %v", err)
	}

	q, err := s.UsedQuotaByTileSetID(ctx, "roads-a")
	if err != nil {
		t.Fatalf("UsedQuotaByTileSetID: %v", err)
	}
	if q.Bytes.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected 1000, got %s", q.Bytes)
	}

	lru, err := s.LeastRecentlyUsedPage(ctx, map[string]struct{}{"roads": {}})
	if err != nil {
		t.Fatalf("LeastRecentlyUsedPage: %v", err)
	}
	if lru == nil {
		t.Fatal("expected an eviction candidate")
	}
	if lru.PageKey != page.Key() {
		t.Fatalf("expected page %s, got %s", page.Key(), lru.PageKey)
	}
}

func TestAddToQuotaAndTileCountsNoOpOnMissingTileSet(t *testing.T) {
	s := openTestStore(t, fake.NewCalculator())
	err := s.AddToQuotaAndTileCounts(context.Background(), "gone", big.NewInt(100), nil)
	if err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestAddToQuotaAndTileCountsClampsFillFactor(t *testing.T) {
	calc := fake.NewCalculator()
	calc.AddLayer("roads", types.TileSet{ID: "roads-a", LayerName: "roads"})
	calc.SetTilesPerPage("roads-a", 4, 10)
	s := openTestStore(t, calc)
	ctx := context.Background()

	page := types.PageRef{TileSetID: "roads-a", Zoom: 4, X: 2, Y: 2}
	err := s.AddToQuotaAndTileCounts(ctx, "roads-a", big.NewInt(0), []types.QuotaPagePayload{
		{Page: page, NumTilesAdded: big.NewInt(40)},
	})
	if err != nil {
		t.Fatalf("AddToQuotaAndTileCounts: %v", err)
	}

	lru, err := s.LeastRecentlyUsedPage(ctx, map[string]struct{}{"roads": {}})
	if err != nil {
		t.Fatalf("LeastRecentlyUsedPage: %v", err)
	}
	if lru == nil {
		t.Fatal("expected a candidate")
	}

	// 40 tiles added to a 10-tile page: 4.0 clamps to 1.
	tx, err := s.engine.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Abort()
	p, found, err := tx.GetPageByKey(page.Key())
	if err != nil || !found {
		t.Fatalf("GetPageByKey: found=%v err=%v", found, err)
	}
	stats, found, err := tx.GetPageStats(p.ID)
	if err != nil || !found {
		t.Fatalf("GetPageStats: found=%v err=%v", found, err)
	}
	if stats.FillFactor != 1 {
		t.Fatalf("expected fill factor clamped to 1, got %f", stats.FillFactor)
	}
}

func TestSetTruncatedZeroesFillFactor(t *testing.T) {
	calc := fake.NewCalculator()
	calc.AddLayer("roads", types.TileSet{ID: "roads-a", LayerName: "roads"})
	calc.SetTilesPerPage("roads-a", 4, 1)
	s := openTestStore(t, calc)
	ctx := context.Background()

	page := types.PageRef{TileSetID: "roads-a", Zoom: 4, X: 3, Y: 3}
	if err := s.AddToQuotaAndTileCounts(ctx, "roads-a", big.NewInt(10), []types.QuotaPagePayload{
		{Page: page, NumTilesAdded: big.NewInt(1)},
	}); err != nil {
		t.Fatalf("AddToQuotaAndTileCounts: %v", err)
	}

	tp, err := s.engine.GetTileSetRead(ctx, "roads-a")
	if err != nil {
		t.Fatalf("GetTileSetRead: %v", err)
	}
	_ = tp

	before, err := s.LeastRecentlyUsedPage(ctx, map[string]struct{}{"roads": {}})
	if err != nil || before == nil {
		t.Fatalf("expected a candidate before truncation, got %+v %v", before, err)
	}

	stats, err := s.SetTruncated(ctx, *before)
	if err != nil {
		t.Fatalf("SetTruncated: %v", err)
	}
	if stats == nil || stats.FillFactor != 0 {
		t.Fatalf("expected fill factor zero, got %+v", stats)
	}

	after, err := s.LeastRecentlyUsedPage(ctx, map[string]struct{}{"roads": {}})
	if err != nil {
		t.Fatalf("LeastRecentlyUsedPage: %v", err)
	}
	if after != nil {
		t.Fatalf("expected no candidate after truncation, got %+v", after)
	}
}
