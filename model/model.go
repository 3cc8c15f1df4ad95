// Package model defines the core data types shared across the ingestion,
// filtering, detection, enrichment and dispatch stages.
package model

import "time"

// Side is the direction of a trade.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Outcome is the binary side of a prediction market.
type Outcome string

const (
	Yes Outcome = "YES"
	No  Outcome = "NO"
)

// Trade is an immutable event created on receipt from the upstream stream.
// It is owned by whichever stage is currently processing it and is discarded
// once an alert (if any) has been dispatched.
type Trade struct {
	AssetID   string
	Side      Side
	Outcome   Outcome
	Price     float64 // implied probability, [0,1]
	Size      float64
	Wallet    string // lowercase hex address
	Timestamp int64  // millisecond epoch
	TradeID   string
}

// USDValue returns price * size, the notional value of the trade.
func (t Trade) USDValue() float64 {
	return t.Price * t.Size
}

// SignalKind identifies one of the six detection predicates.
type SignalKind string

const (
	Whale       SignalKind = "WHALE"
	FreshWallet SignalKind = "FRESH_WALLET"
	Cluster     SignalKind = "CLUSTER"
	Timing      SignalKind = "TIMING"
	OddsMove    SignalKind = "ODDS_MOVE"
	Contrarian  SignalKind = "CONTRARIAN"
)

// Signal is an immutable value produced by the detection stage. Evidence is
// kind-specific: a multiplier for WHALE, a wallet count for CLUSTER, and so on.
type Signal struct {
	Kind     SignalKind
	Evidence map[string]float64
}

// Confidence is the derived severity of an Alert.
type Confidence string

const (
	High   Confidence = "HIGH"
	Medium Confidence = "MEDIUM"
)

// Alert bundles a surviving trade with everything known about why it fired
// and what it means, ready for formatting and dispatch.
type Alert struct {
	Trade      Trade
	Signals    []Signal
	Confidence Confidence

	// Enrichment, best-effort; zero values mean "unknown".
	MarketTitle  string
	MarketEndAt  time.Time
	MidpointOdds float64
	HasMidpoint  bool
	WalletTxs    int64
	HasWalletTxs bool
}

// SignalKindSet returns a stable, order-independent key identifying which
// signal kinds fired, used by the dispatcher for per-market de-duplication.
func (a Alert) SignalKindSet() string {
	kinds := make([]string, 0, len(a.Signals))
	seen := make(map[SignalKind]bool, len(a.Signals))
	for _, s := range a.Signals {
		if !seen[s.Kind] {
			seen[s.Kind] = true
			kinds = append(kinds, string(s.Kind))
		}
	}
	// Deterministic order without depending on detection order.
	for i := 1; i < len(kinds); i++ {
		for j := i; j > 0 && kinds[j-1] > kinds[j]; j-- {
			kinds[j-1], kinds[j] = kinds[j], kinds[j-1]
		}
	}
	key := ""
	for i, k := range kinds {
		if i > 0 {
			key += "+"
		}
		key += k
	}
	return key
}

// Market is catalog metadata for a single asset_id, produced by the catalog
// loader and consulted read-only by the filter and enrichment stages.
type Market struct {
	AssetID    string
	Title      string
	EndTime    time.Time
	Volume24h  float64
	Outcomes   []Outcome
}
