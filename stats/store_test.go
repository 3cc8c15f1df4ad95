package stats

import (
	"testing"

	"github.com/nofendian17/polyinsider/model"
)

func TestMeanRequiresSamples(t *testing.T) {
	s := NewStore()
	ms := s.Get("asset-1")

	if mean, n := ms.Mean(); n != 0 || mean != 0 {
		t.Fatalf("expected zero mean on empty window, got mean=%v n=%v", mean, n)
	}

	ms.Finalize(model.Trade{Price: 0.5, Size: 200})
	ms.Finalize(model.Trade{Price: 0.5, Size: 400})

	mean, n := ms.Mean()
	if n != 2 {
		t.Fatalf("expected n=2, got %d", n)
	}
	if mean != 150 {
		t.Fatalf("expected mean=150, got %v", mean)
	}
}

func TestRecentTradesCapped(t *testing.T) {
	ms := NewStore().Get("asset-1")
	for i := 0; i < maxRecentTrades+10; i++ {
		ms.Finalize(model.Trade{Price: 0.5, Size: 10})
	}
	if _, n := ms.Mean(); n != maxRecentTrades {
		t.Fatalf("expected window capped at %d, got %d", maxRecentTrades, n)
	}
}

func TestCheckOppositePairing(t *testing.T) {
	ms := NewStore().Get("asset-1")

	buy := model.Trade{Wallet: "0xabc", Outcome: model.Yes, Timestamp: 1000}
	if reject := ms.CheckOppositePairing(buy, 200); reject {
		t.Fatalf("first leg should never be rejected")
	}

	sameOutcome := model.Trade{Wallet: "0xabc", Outcome: model.Yes, Timestamp: 1100}
	if reject := ms.CheckOppositePairing(sameOutcome, 200); reject {
		t.Fatalf("same-outcome trade should not pair")
	}

	oppositeInWindow := model.Trade{Wallet: "0xabc", Outcome: model.No, Timestamp: 1150}
	if reject := ms.CheckOppositePairing(oppositeInWindow, 200); !reject {
		t.Fatalf("opposite-outcome trade within window should be rejected as a pair")
	}

	// The pairing was consumed; a fresh opposite leg should not instantly re-pair.
	again := model.Trade{Wallet: "0xabc", Outcome: model.Yes, Timestamp: 1200}
	if reject := ms.CheckOppositePairing(again, 200); reject {
		t.Fatalf("pairing entry should have been consumed, not still present")
	}
}

func TestCheckOppositePairingOutsideWindow(t *testing.T) {
	ms := NewStore().Get("asset-1")
	ms.CheckOppositePairing(model.Trade{Wallet: "0xabc", Outcome: model.Yes, Timestamp: 0}, 200)

	late := model.Trade{Wallet: "0xabc", Outcome: model.No, Timestamp: 5000}
	if reject := ms.CheckOppositePairing(late, 200); reject {
		t.Fatalf("opposite-outcome trade outside window should not pair")
	}
}

func TestDistinctBuyersWindowPruning(t *testing.T) {
	ms := NewStore().Get("asset-1")

	ms.AppendBuyer(model.Trade{Wallet: "0x1", Outcome: model.Yes, Timestamp: 0}, 60)
	ms.AppendBuyer(model.Trade{Wallet: "0x2", Outcome: model.Yes, Timestamp: 10_000}, 60)
	ms.AppendBuyer(model.Trade{Wallet: "0x3", Outcome: model.Yes, Timestamp: 70_000}, 60)

	if got := ms.DistinctBuyersOf(model.Yes); got != 2 {
		t.Fatalf("expected the first buyer to be pruned, got %d distinct buyers", got)
	}
}

func TestDistinctBuyersDedupsWallet(t *testing.T) {
	ms := NewStore().Get("asset-1")
	ms.AppendBuyer(model.Trade{Wallet: "0x1", Outcome: model.Yes, Timestamp: 0}, 60)
	ms.AppendBuyer(model.Trade{Wallet: "0x1", Outcome: model.Yes, Timestamp: 1000}, 60)

	if got := ms.DistinctBuyersOf(model.Yes); got != 1 {
		t.Fatalf("same wallet buying twice should count once, got %d", got)
	}
}

func TestFinalizeUpdatesConsensus(t *testing.T) {
	ms := NewStore().Get("asset-1")
	ms.Finalize(model.Trade{Price: 0.8, Outcome: model.Yes, Size: 1})

	p, ok := ms.ConsensusYes()
	if !ok || p != 0.8 {
		t.Fatalf("expected consensus_yes=0.8, got %v ok=%v", p, ok)
	}

	ms.Finalize(model.Trade{Price: 0.3, Outcome: model.No, Size: 1})
	p, ok = ms.ConsensusYes()
	if !ok || p != 0.7 {
		t.Fatalf("NO trade at price 0.3 should imply consensus_yes=0.7, got %v", p)
	}
}
