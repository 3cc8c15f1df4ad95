package filter

import (
	"testing"
	"time"

	"github.com/nofendian17/polyinsider/catalog"
	"github.com/nofendian17/polyinsider/config"
	"github.com/nofendian17/polyinsider/model"
	"github.com/nofendian17/polyinsider/stats"
)

func testCatalog(t *testing.T, markets ...model.Market) *catalog.Catalog {
	t.Helper()
	// catalog.Loader fetches over HTTP, which would need a fake server;
	// NewTestCatalog builds a Catalog directly from a fixed market list.
	return catalog.NewTestCatalog(markets)
}

func TestChainRejectsUnknownMarket(t *testing.T) {
	chain := NewChain(config.FilterConfig{MinUSDSize: 100})
	cat := testCatalog(t)
	ms := stats.NewStore().Get("asset-1")

	trade := model.Trade{AssetID: "asset-1", Price: 1, Size: 1000}
	pass, reason := chain.Evaluate(trade, cat, ms)
	if pass {
		t.Fatalf("expected rejection for unknown market, got pass with reason %q", reason)
	}
}

func TestChainRejectsExcludedKeyword(t *testing.T) {
	chain := NewChain(config.FilterConfig{MinUSDSize: 100, ExcludeMarketKeywords: []string{"test market"}})
	cat := testCatalog(t, model.Market{AssetID: "asset-1", Title: "A Test Market About Nothing"})
	ms := stats.NewStore().Get("asset-1")

	trade := model.Trade{AssetID: "asset-1", Price: 1, Size: 1000}
	pass, _ := chain.Evaluate(trade, cat, ms)
	if pass {
		t.Fatal("expected rejection for title matching excluded keyword")
	}
}

func TestChainRejectsBelowMinSize(t *testing.T) {
	chain := NewChain(config.FilterConfig{MinUSDSize: 2000})
	cat := testCatalog(t, model.Market{AssetID: "asset-1", Title: "Will it rain"})
	ms := stats.NewStore().Get("asset-1")

	trade := model.Trade{AssetID: "asset-1", Price: 0.5, Size: 100}
	pass, _ := chain.Evaluate(trade, cat, ms)
	if pass {
		t.Fatal("expected rejection below minimum USD size")
	}
}

func TestChainRejectsLPPair(t *testing.T) {
	chain := NewChain(config.FilterConfig{MinUSDSize: 100, LPDetectionWindowMS: 200})
	cat := testCatalog(t, model.Market{AssetID: "asset-1", Title: "Will it rain"})
	ms := stats.NewStore().Get("asset-1")

	buy := model.Trade{AssetID: "asset-1", Wallet: "0xabc", Outcome: model.Yes, Price: 0.5, Size: 1000, Timestamp: 1000}
	if pass, _ := chain.Evaluate(buy, cat, ms); !pass {
		t.Fatal("first leg should pass")
	}

	sell := model.Trade{AssetID: "asset-1", Wallet: "0xabc", Outcome: model.No, Price: 0.5, Size: 1000, Timestamp: 1050}
	pass, reason := chain.Evaluate(sell, cat, ms)
	if pass {
		t.Fatalf("second leg within LP window should be rejected, got pass with reason %q", reason)
	}
}

func TestChainPassesLegitimateTrade(t *testing.T) {
	chain := NewChain(config.FilterConfig{MinUSDSize: 2000})
	cat := testCatalog(t, model.Market{AssetID: "asset-1", Title: "Will it rain", EndTime: time.Now().Add(24 * time.Hour)})
	ms := stats.NewStore().Get("asset-1")

	trade := model.Trade{AssetID: "asset-1", Wallet: "0xabc", Price: 0.5, Size: 10000, Timestamp: 1000}
	pass, reason := chain.Evaluate(trade, cat, ms)
	if !pass {
		t.Fatalf("expected trade to pass, got rejection: %q", reason)
	}
}
