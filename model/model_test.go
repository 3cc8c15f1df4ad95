package model

import "testing"

func TestTradeUSDValue(t *testing.T) {
	trade := Trade{Price: 0.65, Size: 1000}
	if got := trade.USDValue(); got != 650 {
		t.Fatalf("USDValue() = %v, want 650", got)
	}
}

func TestSignalKindSetDeterministic(t *testing.T) {
	a := Alert{Signals: []Signal{{Kind: Whale}, {Kind: Cluster}, {Kind: Whale}}}
	b := Alert{Signals: []Signal{{Kind: Cluster}, {Kind: Whale}}}

	if a.SignalKindSet() != b.SignalKindSet() {
		t.Fatalf("expected order-independent, dedup'd key, got %q vs %q", a.SignalKindSet(), b.SignalKindSet())
	}
	if a.SignalKindSet() != "CLUSTER+WHALE" {
		t.Fatalf("got %q, want CLUSTER+WHALE", a.SignalKindSet())
	}
}

func TestSignalKindSetEmpty(t *testing.T) {
	a := Alert{}
	if got := a.SignalKindSet(); got != "" {
		t.Fatalf("empty signal set should produce empty key, got %q", got)
	}
}
