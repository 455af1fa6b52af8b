package quotastore

import (
	"context"
	"math/big"
	"testing"

	"github.com/tilequota/diskquota/internal/calculator/fake"
	"github.com/tilequota/diskquota/internal/types"
)

func TestDeleteLayerFreesQuotaAndRemovesTileSets(t *testing.T) {
	calc := fake.NewCalculator()
	calc.AddLayer("roads", types.TileSet{ID: "roads-a", LayerName: "roads"}, types.TileSet{ID: "roads-b", LayerName: "roads"})
	s := openTestStore(t, calc)
	ctx := context.Background()

	if err := s.AddToQuotaAndTileCounts(ctx, "roads-a", big.NewInt(200), nil); err != nil {
		t.Fatalf("AddToQuotaAndTileCounts: %v", err)
	}
	if err := s.AddToQuotaAndTileCounts(ctx, "roads-b", big.NewInt(300), nil); err != nil {
		t.Fatalf("AddToQuotaAndTileCounts: %v", err)
	}

	if _, err := s.DeleteLayer(ctx, "roads").Wait(ctx); err != nil {
		t.Fatalf("DeleteLayer: %v", err)
	}

	if _, err := s.TileSetByID(ctx, "roads-a"); err != types.ErrNoSuchTileSet {
		t.Fatalf("expected roads-a gone, got %v", err)
	}

	global, err := s.GloballyUsedQuota(ctx)
	if err != nil {
		t.Fatalf("GloballyUsedQuota: %v", err)
	}
	if global.Sign() != 0 {
		t.Fatalf("expected global quota back to zero, got %s", global)
	}
}
