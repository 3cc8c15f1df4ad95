package signals

import (
	"testing"
	"time"

	"github.com/nofendian17/polyinsider/config"
	"github.com/nofendian17/polyinsider/model"
	"github.com/nofendian17/polyinsider/stats"
)

func defaultConfig() config.SignalConfig {
	return config.SignalConfig{
		WhaleThresholdUSD:            10000,
		WhaleMultiplier:              5,
		FreshWalletMaxTxs:            10,
		ClusterWindowSeconds:         60,
		ClusterMinWallets:            3,
		TimingHoursThreshold:         24,
		OddsMovementThreshold:        0.05,
		ContrarianConsensusThreshold: 0.70,
		ContrarianMinSizeUSD:         5000,
	}
}

func hasKind(fired []model.Signal, kind model.SignalKind) bool {
	for _, s := range fired {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

func TestWhaleFiresOnAbsoluteThreshold(t *testing.T) {
	cfg := defaultConfig()
	ms := stats.NewStore().Get("asset-1")
	trade := model.Trade{AssetID: "asset-1", Price: 1, Size: 15000}

	fired := Evaluate(trade, model.Market{}, false, ms, stats.WalletInfo{}, false, cfg)
	if !hasKind(fired, model.Whale) {
		t.Fatalf("expected WHALE to fire on absolute threshold, got %+v", fired)
	}
}

func TestWhaleRequiresSampleFloorForRelativeCheck(t *testing.T) {
	cfg := defaultConfig()
	ms := stats.NewStore().Get("asset-1")
	// Only a handful of small trades recorded: below the 20-sample floor.
	for i := 0; i < 5; i++ {
		ms.Finalize(model.Trade{Price: 1, Size: 10})
	}

	trade := model.Trade{AssetID: "asset-1", Price: 1, Size: 200} // 20x mean but sample too small
	fired := Evaluate(trade, model.Market{}, false, ms, stats.WalletInfo{}, false, cfg)
	if hasKind(fired, model.Whale) {
		t.Fatal("WHALE should not fire on a relative spike before the 20-sample floor")
	}
}

func TestWhaleFiresOnRelativeSpikeAfterFloor(t *testing.T) {
	cfg := defaultConfig()
	ms := stats.NewStore().Get("asset-1")
	for i := 0; i < 25; i++ {
		ms.Finalize(model.Trade{Price: 1, Size: 10})
	}

	trade := model.Trade{AssetID: "asset-1", Price: 1, Size: 100} // 10x mean, multiplier is 5x
	fired := Evaluate(trade, model.Market{}, false, ms, stats.WalletInfo{}, false, cfg)
	if !hasKind(fired, model.Whale) {
		t.Fatal("expected WHALE to fire on relative spike after sample floor")
	}
}

func TestFreshWalletNeverFalsePositiveOnFetchFailure(t *testing.T) {
	cfg := defaultConfig()
	ms := stats.NewStore().Get("asset-1")
	trade := model.Trade{AssetID: "asset-1", Price: 0.1, Size: 1}

	fired := Evaluate(trade, model.Market{}, false, ms, stats.WalletInfo{}, false, cfg)
	if hasKind(fired, model.FreshWallet) {
		t.Fatal("a wallet-fetch failure must never produce a FRESH_WALLET false positive")
	}
}

func TestFreshWalletFiresBelowThreshold(t *testing.T) {
	cfg := defaultConfig()
	ms := stats.NewStore().Get("asset-1")
	trade := model.Trade{AssetID: "asset-1", Price: 0.1, Size: 1}

	fired := Evaluate(trade, model.Market{}, false, ms, stats.WalletInfo{TxCount: 3}, true, cfg)
	if !hasKind(fired, model.FreshWallet) {
		t.Fatal("expected FRESH_WALLET to fire for a wallet under the tx threshold")
	}
}

func TestClusterFiresOnThreeDistinctBuyers(t *testing.T) {
	cfg := defaultConfig()
	store := stats.NewStore()
	ms := store.Get("asset-1")

	ms.AppendBuyer(model.Trade{Wallet: "0x1", Outcome: model.Yes, Timestamp: 0}, cfg.ClusterWindowSeconds)
	ms.AppendBuyer(model.Trade{Wallet: "0x2", Outcome: model.Yes, Timestamp: 1000}, cfg.ClusterWindowSeconds)

	trade := model.Trade{AssetID: "asset-1", Wallet: "0x3", Outcome: model.Yes, Side: model.Buy, Timestamp: 2000}
	fired := Evaluate(trade, model.Market{}, false, ms, stats.WalletInfo{}, false, cfg)
	if !hasKind(fired, model.Cluster) {
		t.Fatalf("expected CLUSTER to fire on the third distinct buyer, got %+v", fired)
	}
}

func TestTimingFiresNearClose(t *testing.T) {
	cfg := defaultConfig()
	ms := stats.NewStore().Get("asset-1")
	now := time.Now()
	market := model.Market{AssetID: "asset-1", EndTime: now.Add(2 * time.Hour)}

	trade := model.Trade{AssetID: "asset-1", Timestamp: now.UnixMilli()}
	fired := Evaluate(trade, market, true, ms, stats.WalletInfo{}, false, cfg)
	if !hasKind(fired, model.Timing) {
		t.Fatal("expected TIMING to fire for a market closing within the threshold")
	}
}

func TestTimingDoesNotFireForPastEndTime(t *testing.T) {
	cfg := defaultConfig()
	ms := stats.NewStore().Get("asset-1")
	now := time.Now()
	market := model.Market{AssetID: "asset-1", EndTime: now.Add(-1 * time.Hour)}

	trade := model.Trade{AssetID: "asset-1", Timestamp: now.UnixMilli()}
	fired := Evaluate(trade, market, true, ms, stats.WalletInfo{}, false, cfg)
	if hasKind(fired, model.Timing) {
		t.Fatal("TIMING must not fire once end_time is in the past")
	}
}

func TestOddsMoveFiresOnLargeDelta(t *testing.T) {
	cfg := defaultConfig()
	ms := stats.NewStore().Get("asset-1")
	ms.Finalize(model.Trade{Price: 0.40, Outcome: model.Yes, Size: 1})

	trade := model.Trade{AssetID: "asset-1", Price: 0.50, Outcome: model.Yes}
	fired := Evaluate(trade, model.Market{}, false, ms, stats.WalletInfo{}, false, cfg)
	if !hasKind(fired, model.OddsMove) {
		t.Fatal("expected ODDS_MOVE to fire on a 0.10 swing")
	}
}

func TestContrarianFiresAgainstConsensus(t *testing.T) {
	cfg := defaultConfig()
	ms := stats.NewStore().Get("asset-1")
	ms.Finalize(model.Trade{Price: 0.85, Outcome: model.Yes, Size: 1}) // consensus_yes = 0.85

	// Consensus favors YES; a BUY of NO is contrarian.
	trade := model.Trade{AssetID: "asset-1", Outcome: model.No, Side: model.Buy, Price: 0.15, Size: 50000}
	fired := Evaluate(trade, model.Market{}, false, ms, stats.WalletInfo{}, false, cfg)
	if !hasKind(fired, model.Contrarian) {
		t.Fatal("expected CONTRARIAN to fire for a large bet against consensus")
	}
}

func TestContrarianDoesNotFireWithConsensus(t *testing.T) {
	cfg := defaultConfig()
	ms := stats.NewStore().Get("asset-1")
	ms.Finalize(model.Trade{Price: 0.85, Outcome: model.Yes, Size: 1})

	trade := model.Trade{AssetID: "asset-1", Outcome: model.Yes, Side: model.Buy, Price: 0.85, Size: 50000}
	fired := Evaluate(trade, model.Market{}, false, ms, stats.WalletInfo{}, false, cfg)
	if hasKind(fired, model.Contrarian) {
		t.Fatal("betting with consensus must not fire CONTRARIAN")
	}
}

func TestConfidenceHighOnMultipleSignals(t *testing.T) {
	fired := []model.Signal{{Kind: model.Whale}, {Kind: model.FreshWallet}}
	if got := Confidence(fired, 100); got != model.High {
		t.Fatalf("expected HIGH confidence for 2+ signals, got %v", got)
	}
}

func TestConfidenceHighOnLargeSize(t *testing.T) {
	fired := []model.Signal{{Kind: model.Whale}}
	if got := Confidence(fired, 30000); got != model.High {
		t.Fatalf("expected HIGH confidence for usd_value >= 25000, got %v", got)
	}
}

func TestConfidenceMediumOtherwise(t *testing.T) {
	fired := []model.Signal{{Kind: model.Whale}}
	if got := Confidence(fired, 100); got != model.Medium {
		t.Fatalf("expected MEDIUM confidence, got %v", got)
	}
}
