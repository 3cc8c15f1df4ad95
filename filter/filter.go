// Package filter implements the three-stage reject-chain that decides
// whether a trade is worth detecting signals on, modeled on the donor's
// SignalFilter pipeline: a small set of named predicates run in order, the
// first rejection short-circuits the chain, and every rejection is logged
// with its reason.
package filter

import (
	"fmt"
	"log"
	"strings"

	"github.com/nofendian17/polyinsider/catalog"
	"github.com/nofendian17/polyinsider/config"
	"github.com/nofendian17/polyinsider/model"
	"github.com/nofendian17/polyinsider/stats"
)

// Stage is one predicate in the reject chain.
type Stage interface {
	Name() string
	Evaluate(trade model.Trade, market model.Market, haveMarket bool, ms *stats.MarketStats) (pass bool, reason string)
}

// Chain runs a fixed, ordered set of Stages and stops at the first
// rejection, exactly mirroring the donor's SignalFilterService.Evaluate loop.
type Chain struct {
	stages []Stage
}

// NewChain builds the three-stage pipeline described for this pipeline:
// market keyword exclusion, minimum trade size, and LP/arbitrage pairing.
func NewChain(cfg config.FilterConfig) *Chain {
	return &Chain{
		stages: []Stage{
			marketKeywordStage{excludeKeywords: cfg.ExcludeMarketKeywords},
			minSizeStage{minUSD: cfg.MinUSDSize},
			lpPairingStage{windowMS: cfg.LPDetectionWindowMS},
		},
	}
}

// Evaluate runs trade through the chain. pass is false as soon as any
// stage rejects; reason is then the rejecting stage's Name(), and the
// stage's own explanation is logged here.
func (c *Chain) Evaluate(trade model.Trade, cat *catalog.Catalog, ms *stats.MarketStats) (pass bool, reason string) {
	market, haveMarket := cat.Lookup(trade.AssetID)
	for _, stage := range c.stages {
		ok, why := stage.Evaluate(trade, market, haveMarket, ms)
		if !ok {
			log.Printf("🚫 %s rejected trade %s on %s: %s", stage.Name(), trade.TradeID, trade.AssetID, why)
			return false, stage.Name()
		}
	}
	return true, ""
}

type marketKeywordStage struct {
	excludeKeywords []string
}

func (marketKeywordStage) Name() string { return "market_keyword" }

func (s marketKeywordStage) Evaluate(_ model.Trade, market model.Market, haveMarket bool, _ *stats.MarketStats) (bool, string) {
	if !haveMarket {
		return false, "asset_id not in catalog"
	}
	title := strings.ToLower(market.Title)
	for _, kw := range s.excludeKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(title, strings.ToLower(kw)) {
			return false, fmt.Sprintf("title matches excluded keyword %q", kw)
		}
	}
	return true, ""
}

type minSizeStage struct {
	minUSD float64
}

func (minSizeStage) Name() string { return "min_size" }

func (s minSizeStage) Evaluate(trade model.Trade, _ model.Market, _ bool, _ *stats.MarketStats) (bool, string) {
	if trade.USDValue() < s.minUSD {
		return false, fmt.Sprintf("usd_value %.2f below minimum %.2f", trade.USDValue(), s.minUSD)
	}
	return true, ""
}

type lpPairingStage struct {
	windowMS int64
}

func (lpPairingStage) Name() string { return "lp_pairing" }

func (s lpPairingStage) Evaluate(trade model.Trade, _ model.Market, _ bool, ms *stats.MarketStats) (bool, string) {
	if ms.CheckOppositePairing(trade, s.windowMS) {
		return false, "paired with opposite-outcome trade within LP detection window"
	}
	return true, ""
}
