// Package enrich resolves market and wallet context for an alert
// candidate before it reaches the dispatcher. It never blocks ingestion:
// catalog lookups are in-process reads, the midpoint fetch is bounded to
// 2s and best-effort, and a wallet cache miss schedules an async fetch and
// proceeds without. This mirrors the donor's cache-first-then-origin
// pattern in getStockStats/getActiveWebhooks, generalized so a miss never
// blocks the caller.
package enrich

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/nofendian17/polyinsider/catalog"
	"github.com/nofendian17/polyinsider/model"
	"github.com/nofendian17/polyinsider/stats"
)

const midpointTimeout = 2 * time.Second

// Enricher fills in an Alert's best-effort context fields.
type Enricher struct {
	catalog      *catalog.Catalog
	oddsURL      string
	client       *http.Client
	wallets      *stats.WalletCache
	fetcher      *stats.WalletFetcher
	walletResult chan<- stats.WalletFetchResult
}

// New builds an Enricher. oddsURL may be empty, disabling midpoint
// enrichment. walletResults is the channel the detection goroutine drains
// to apply async wallet fetches; it may be nil if wallet lookups are
// handled entirely inline by the caller.
func New(cat *catalog.Catalog, oddsURL string, wallets *stats.WalletCache, fetcher *stats.WalletFetcher, walletResults chan<- stats.WalletFetchResult) *Enricher {
	return &Enricher{
		catalog:      cat,
		oddsURL:      oddsURL,
		client:       &http.Client{Timeout: midpointTimeout},
		wallets:      wallets,
		fetcher:      fetcher,
		walletResult: walletResults,
	}
}

// Enrich fills the market title/close-time, midpoint odds, and wallet
// summary fields of alert, mutating it in place. Every field degrades
// independently: a midpoint timeout doesn't block the wallet lookup, and
// neither blocks the alert from reaching the dispatcher.
func (e *Enricher) Enrich(ctx context.Context, alert *model.Alert) {
	if market, ok := e.catalog.Lookup(alert.Trade.AssetID); ok {
		alert.MarketTitle = market.Title
		alert.MarketEndAt = market.EndTime
	}

	if e.oddsURL != "" {
		if mid, ok := e.fetchMidpoint(ctx, alert.Trade.AssetID); ok {
			alert.MidpointOdds = mid
			alert.HasMidpoint = true
		}
	}

	if e.wallets != nil {
		if info, ok := e.wallets.Get(ctx, alert.Trade.Wallet); ok {
			alert.WalletTxs = info.TxCount
			alert.HasWalletTxs = true
		} else if e.fetcher != nil && e.walletResult != nil {
			e.fetcher.FetchAsync(alert.Trade.Wallet, e.walletResult)
		}
	}
}

type midpointResponse struct {
	Midpoint float64 `json:"mid,string"`
}

func (e *Enricher) fetchMidpoint(ctx context.Context, assetID string) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, midpointTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.oddsURL+"?token_id="+assetID, nil)
	if err != nil {
		log.Printf("⚠️  Midpoint request build failed for %s: %v", assetID, err)
		return 0, false
	}

	resp, err := e.client.Do(req)
	if err != nil {
		log.Printf("⚠️  Midpoint fetch failed for %s: %v", assetID, err)
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var mr midpointResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		log.Printf("⚠️  Midpoint decode failed for %s: %v", assetID, err)
		return 0, false
	}
	return mr.Midpoint, true
}
