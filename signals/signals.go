// Package signals implements the six insider-like detection predicates.
// Each is a pure function of the incoming trade and the market/wallet
// state as it stood before this trade (except CLUSTER, whose buyer window
// already includes the trade), grounded in the donor's
// detectWhale (handlers/running_trade.go) generalized from a single
// z-score check into six independent predicates any subset of which may
// fire on one trade.
package signals

import (
	"time"

	"github.com/nofendian17/polyinsider/config"
	"github.com/nofendian17/polyinsider/model"
	"github.com/nofendian17/polyinsider/stats"
)

const whaleSampleFloor = 20 // minimum recent_trades before WHALE's relative check is trusted

// Evaluate runs all six predicates against the pre-update market stats and
// the trade's wallet info, returning every signal that fired. The only
// change made to ms here is appending a BUY trade to its recent-buyers
// window; Finalize is the caller's job, after evaluation.
func Evaluate(trade model.Trade, market model.Market, haveMarket bool, ms *stats.MarketStats, wallet stats.WalletInfo, haveWallet bool, cfg config.SignalConfig) []model.Signal {
	var fired []model.Signal

	if s, ok := whale(trade, ms, cfg); ok {
		fired = append(fired, s)
	}
	if s, ok := freshWallet(wallet, haveWallet, cfg); ok {
		fired = append(fired, s)
	}

	// CLUSTER appends the current trade to recent_buyers before evaluating,
	// per the spec's rule that a cluster counts the trade that triggers it.
	if trade.Side == model.Buy {
		ms.AppendBuyer(trade, cfg.ClusterWindowSeconds)
		if s, ok := cluster(trade, ms, cfg); ok {
			fired = append(fired, s)
		}
	}

	if haveMarket {
		if s, ok := timing(trade, market, cfg); ok {
			fired = append(fired, s)
		}
	}
	if s, ok := oddsMove(trade, ms, cfg); ok {
		fired = append(fired, s)
	}
	if s, ok := contrarian(trade, ms, cfg); ok {
		fired = append(fired, s)
	}

	return fired
}

func whale(trade model.Trade, ms *stats.MarketStats, cfg config.SignalConfig) (model.Signal, bool) {
	usd := trade.USDValue()
	if usd >= cfg.WhaleThresholdUSD {
		return model.Signal{Kind: model.Whale, Evidence: map[string]float64{"usd_value": usd, "threshold": cfg.WhaleThresholdUSD}}, true
	}

	mean, n := ms.Mean()
	if n >= whaleSampleFloor && usd >= cfg.WhaleMultiplier*mean {
		return model.Signal{Kind: model.Whale, Evidence: map[string]float64{"usd_value": usd, "mean": mean, "multiplier": cfg.WhaleMultiplier}}, true
	}
	return model.Signal{}, false
}

func freshWallet(wallet stats.WalletInfo, haveWallet bool, cfg config.SignalConfig) (model.Signal, bool) {
	if !haveWallet {
		return model.Signal{}, false // fetch failure: tx_count treated as infinite
	}
	if wallet.TxCount < cfg.FreshWalletMaxTxs {
		return model.Signal{Kind: model.FreshWallet, Evidence: map[string]float64{"tx_count": float64(wallet.TxCount)}}, true
	}
	return model.Signal{}, false
}

func cluster(trade model.Trade, ms *stats.MarketStats, cfg config.SignalConfig) (model.Signal, bool) {
	count := ms.DistinctBuyersOf(trade.Outcome)
	if count >= cfg.ClusterMinWallets {
		return model.Signal{Kind: model.Cluster, Evidence: map[string]float64{"distinct_wallets": float64(count)}}, true
	}
	return model.Signal{}, false
}

func timing(trade model.Trade, market model.Market, cfg config.SignalConfig) (model.Signal, bool) {
	if market.EndTime.IsZero() {
		return model.Signal{}, false
	}
	tradeTime := time.UnixMilli(trade.Timestamp)
	if !market.EndTime.After(tradeTime) {
		return model.Signal{}, false // end_time must be in the future
	}
	hoursLeft := market.EndTime.Sub(tradeTime).Hours()
	if hoursLeft <= cfg.TimingHoursThreshold {
		return model.Signal{Kind: model.Timing, Evidence: map[string]float64{"hours_to_close": hoursLeft}}, true
	}
	return model.Signal{}, false
}

func oddsMove(trade model.Trade, ms *stats.MarketStats, cfg config.SignalConfig) (model.Signal, bool) {
	lastPrice, ok := ms.LastPrice()
	if !ok {
		return model.Signal{}, false
	}
	delta := trade.Price - lastPrice
	if delta < 0 {
		delta = -delta
	}
	if delta >= cfg.OddsMovementThreshold {
		return model.Signal{Kind: model.OddsMove, Evidence: map[string]float64{"delta": delta, "last_price": lastPrice}}, true
	}
	return model.Signal{}, false
}

func contrarian(trade model.Trade, ms *stats.MarketStats, cfg config.SignalConfig) (model.Signal, bool) {
	if trade.USDValue() < cfg.ContrarianMinSizeUSD {
		return model.Signal{}, false
	}
	consensusYes, ok := ms.ConsensusYes()
	if !ok {
		return model.Signal{}, false
	}

	majority := consensusYes
	if majority < 0.5 {
		majority = 1 - majority
	}
	if majority < cfg.ContrarianConsensusThreshold {
		return model.Signal{}, false
	}

	var isContrarian bool
	switch {
	case consensusYes >= cfg.ContrarianConsensusThreshold:
		isContrarian = (trade.Outcome == model.No && trade.Side == model.Buy) || (trade.Outcome == model.Yes && trade.Side == model.Sell)
	case consensusYes <= 1-cfg.ContrarianConsensusThreshold:
		isContrarian = (trade.Outcome == model.Yes && trade.Side == model.Buy) || (trade.Outcome == model.No && trade.Side == model.Sell)
	}

	if isContrarian {
		return model.Signal{Kind: model.Contrarian, Evidence: map[string]float64{"consensus_yes": consensusYes, "usd_value": trade.USDValue()}}, true
	}
	return model.Signal{}, false
}

// Confidence derives HIGH/MEDIUM severity from the fired signal set and
// trade size, simplified from the donor's continuous confidence score
// (calculateConfidenceScore, handlers/running_trade.go) into the spec's
// two-bucket rule.
func Confidence(fired []model.Signal, usdValue float64) model.Confidence {
	if len(fired) >= 2 || usdValue >= 25000 {
		return model.High
	}
	return model.Medium
}
