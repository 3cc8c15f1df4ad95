package catalog

import (
	"testing"

	"github.com/nofendian17/polyinsider/model"
)

func TestRankOrdersByVolumeDescending(t *testing.T) {
	markets := []model.Market{
		{AssetID: "low", Volume24h: 100},
		{AssetID: "high", Volume24h: 9000},
		{AssetID: "mid", Volume24h: 500},
	}
	ranked := rank(markets, 0)
	if ranked[0].AssetID != "high" || ranked[1].AssetID != "mid" || ranked[2].AssetID != "low" {
		t.Fatalf("unexpected order: %+v", ranked)
	}
}

func TestRankTruncatesToLimit(t *testing.T) {
	markets := []model.Market{
		{AssetID: "a", Volume24h: 3},
		{AssetID: "b", Volume24h: 2},
		{AssetID: "c", Volume24h: 1},
	}
	ranked := rank(markets, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(ranked))
	}
}

func TestCatalogLookupAndAssetIDs(t *testing.T) {
	cat := NewTestCatalog([]model.Market{
		{AssetID: "a", Title: "Market A"},
		{AssetID: "b", Title: "Market B"},
	})

	if _, ok := cat.Lookup("missing"); ok {
		t.Fatal("expected miss for unknown asset")
	}
	m, ok := cat.Lookup("a")
	if !ok || m.Title != "Market A" {
		t.Fatalf("expected to find Market A, got %+v ok=%v", m, ok)
	}

	ids := cat.AssetIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 asset ids, got %d", len(ids))
	}
}
