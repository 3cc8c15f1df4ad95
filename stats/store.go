// Package stats maintains the per-market and per-wallet state the signal
// engine evaluates against: a recent-trades window, a recent-buyers window
// for cluster detection, LP/arbitrage pairing bookkeeping, and a
// TTL-cached wallet transaction count. Every type here has exactly one
// writer — the detection goroutine — by design; see Store's doc comment.
package stats

import (
	"github.com/nofendian17/polyinsider/model"
)

const maxRecentTrades = 100

// buyerEntry is one recorded buy, kept long enough to answer "how many
// distinct wallets bought this outcome in the last window".
type buyerEntry struct {
	Wallet    string
	Outcome   model.Outcome
	Timestamp int64 // ms epoch
}

// pendingOpposite is a candidate leg of an LP/arbitrage pair awaiting its
// counterpart within the pairing window.
type pendingOpposite struct {
	Outcome   model.Outcome
	Timestamp int64
}

// MarketStats is the per-asset_id rolling state the filter and signal
// stages read and update. It has exactly one writer: the detection
// goroutine that owns the Store it lives in. Neither MarketStats nor Store
// has synchronized accessors, so no other goroutine reads a MarketStats.
type MarketStats struct {
	recentTrades []float64 // USD values, oldest first, capped at maxRecentTrades
	recentBuyers []buyerEntry
	pending      map[string]pendingOpposite

	hasLastPrice bool
	lastPrice    float64

	hasConsensus bool
	consensusYes float64
}

func newMarketStats() *MarketStats {
	return &MarketStats{pending: make(map[string]pendingOpposite)}
}

// Mean returns the mean USD value of the pre-update recent-trades window,
// and the window's length. Callers must check length themselves against
// the 20-sample floor before using the mean for the WHALE predicate.
func (m *MarketStats) Mean() (mean float64, n int) {
	n = len(m.recentTrades)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range m.recentTrades {
		sum += v
	}
	return sum / float64(n), n
}

// LastPrice returns the last observed trade price for this market and
// whether one has been recorded yet.
func (m *MarketStats) LastPrice() (price float64, ok bool) {
	return m.lastPrice, m.hasLastPrice
}

// ConsensusYes returns the current running estimate of the YES-implied
// probability and whether one has been recorded yet.
func (m *MarketStats) ConsensusYes() (p float64, ok bool) {
	return m.consensusYes, m.hasConsensus
}

// CheckOppositePairing implements the LP/arbitrage filter stage: if an
// unexpired opposite-outcome entry exists for this wallet, both legs are
// consumed and reject is true. Otherwise the current trade is recorded as
// the new pending entry (overwriting any stale one). Entries of any wallet
// that lie outside the window of this trade are pruned on each call.
func (m *MarketStats) CheckOppositePairing(trade model.Trade, windowMS int64) (reject bool) {
	for wallet, e := range m.pending {
		if absInt64(trade.Timestamp-e.Timestamp) > windowMS {
			delete(m.pending, wallet)
		}
	}
	entry, ok := m.pending[trade.Wallet]
	if ok && entry.Outcome != trade.Outcome && absInt64(trade.Timestamp-entry.Timestamp) <= windowMS {
		delete(m.pending, trade.Wallet)
		return true
	}
	m.pending[trade.Wallet] = pendingOpposite{Outcome: trade.Outcome, Timestamp: trade.Timestamp}
	return false
}

// AppendBuyer records a buy for cluster detection and prunes entries older
// than windowSeconds, matching CLUSTER's "appended before evaluation" rule.
// Only BUY-side trades should be passed here; sells never contribute.
func (m *MarketStats) AppendBuyer(trade model.Trade, windowSeconds int64) {
	cutoff := trade.Timestamp - windowSeconds*1000
	pruned := m.recentBuyers[:0]
	for _, b := range m.recentBuyers {
		if b.Timestamp >= cutoff {
			pruned = append(pruned, b)
		}
	}
	m.recentBuyers = append(pruned, buyerEntry{
		Wallet:    trade.Wallet,
		Outcome:   trade.Outcome,
		Timestamp: trade.Timestamp,
	})
}

// DistinctBuyersOf counts distinct wallets that bought outcome within the
// current (already-pruned) recent-buyers window.
func (m *MarketStats) DistinctBuyersOf(outcome model.Outcome) int {
	seen := make(map[string]bool, len(m.recentBuyers))
	for _, b := range m.recentBuyers {
		if b.Outcome == outcome {
			seen[b.Wallet] = true
		}
	}
	return len(seen)
}

// Finalize updates recent_trades, last_price and consensus_yes after
// signal evaluation has used their pre-update values.
func (m *MarketStats) Finalize(trade model.Trade) {
	m.recentTrades = append(m.recentTrades, trade.USDValue())
	if len(m.recentTrades) > maxRecentTrades {
		m.recentTrades = m.recentTrades[len(m.recentTrades)-maxRecentTrades:]
	}

	m.lastPrice = trade.Price
	m.hasLastPrice = true

	if trade.Outcome == model.Yes {
		m.consensusYes = trade.Price
	} else {
		m.consensusYes = 1 - trade.Price
	}
	m.hasConsensus = true
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Store owns the full set of per-market stats, keyed by asset_id. It is
// intentionally not safe for concurrent mutation: the detection goroutine
// is the sole writer, per the pipeline's single-writer discipline. Get
// lazily creates a zero-value MarketStats for an unseen asset, mirroring
// how a market silently starts accruing stats the first time it trades.
type Store struct {
	markets map[string]*MarketStats
}

// NewStore returns an empty statistics store.
func NewStore() *Store {
	return &Store{markets: make(map[string]*MarketStats)}
}

// Get returns the MarketStats for assetID, creating it on first access.
func (s *Store) Get(assetID string) *MarketStats {
	m, ok := s.markets[assetID]
	if !ok {
		m = newMarketStats()
		s.markets[assetID] = m
	}
	return m
}

// Len reports how many distinct markets have accrued stats.
func (s *Store) Len() int { return len(s.markets) }
