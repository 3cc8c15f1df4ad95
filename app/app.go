// Package app wires the pipeline stages together and owns the process
// lifecycle: startup ordering, goroutine fan-out, and graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nofendian17/polyinsider/cache"
	"github.com/nofendian17/polyinsider/catalog"
	"github.com/nofendian17/polyinsider/config"
	"github.com/nofendian17/polyinsider/dispatch"
	"github.com/nofendian17/polyinsider/enrich"
	"github.com/nofendian17/polyinsider/filter"
	"github.com/nofendian17/polyinsider/health"
	"github.com/nofendian17/polyinsider/model"
	"github.com/nofendian17/polyinsider/signals"
	"github.com/nofendian17/polyinsider/stats"
	"github.com/nofendian17/polyinsider/stream"
)

// enrichWorkers is the size of the pool that performs enrichment (market
// lookup, midpoint fetch, wallet cache fallback) off the detection
// goroutine, so a slow ODDS_URL response never stalls trade ingestion.
// enrichQueueDepth bounds how many signalled alerts can wait for a free
// worker before handleTrade gives up on enrichment and dispatches as-is.
const (
	enrichWorkers    = 4
	enrichQueueDepth = 512
)

// App wires and runs the full catalog -> stream -> filter -> detect ->
// enrich -> dispatch pipeline.
type App struct {
	cfg *config.Config

	redis      *cache.RedisClient
	catalog    *catalog.Catalog
	catalogSvc *catalog.Loader
	stream     *stream.Client
	chain      *filter.Chain
	store      *stats.Store
	wallets    *stats.WalletCache
	fetcher    *stats.WalletFetcher
	enricher   *enrich.Enricher
	dispatcher *dispatch.Dispatcher

	walletResults chan stats.WalletFetchResult
	enrichQueue   chan model.Alert

	countersMu     sync.Mutex
	tradesReceived int64
	tradesFiltered map[string]int64
	signalsFired   map[string]int64
}

// New constructs an App from configuration. Network connections and
// background goroutines are not started until Run.
func New(cfg *config.Config) *App {
	return &App{
		cfg:            cfg,
		tradesFiltered: make(map[string]int64),
		signalsFired:   make(map[string]int64),
	}
}

// Run performs startup (catalog load, sinks, stream client), launches the
// pipeline goroutines, and blocks until an interrupt or a fatal error,
// then drains and shuts down gracefully. It returns 0 after a clean
// shutdown and 1 on a fatal startup error; no runtime failure ends Run.
func (a *App) Run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.redis = cache.NewRedisClient(a.cfg.RedisHost, a.cfg.RedisPort, a.cfg.RedisPassword)

	log.Println("📊 Loading market catalog...")
	a.catalogSvc = catalog.NewLoader(a.cfg.CatalogURL, a.cfg.MarketCap)
	cat, err := a.catalogSvc.Load(ctx)
	if err != nil {
		log.Printf("❌ Catalog load failed: %v", err)
		return 1
	}
	a.catalog = cat

	a.chain = filter.NewChain(a.cfg.Filter)
	a.store = stats.NewStore()
	a.wallets = stats.NewWalletCache(a.cfg.Signals.WalletCacheTTL, a.redis)
	a.fetcher = stats.NewWalletFetcher(a.cfg.RPCURL)
	a.walletResults = make(chan stats.WalletFetchResult, 64)
	a.enricher = enrich.New(a.catalog, a.cfg.OddsURL, a.wallets, a.fetcher, a.walletResults)
	a.enrichQueue = make(chan model.Alert, enrichQueueDepth)

	sinks := a.buildSinks()
	if len(sinks) == 0 {
		log.Println("❌ No notification sinks configured")
		return 1
	}
	a.dispatcher = dispatch.New(a.cfg.Dispatch, sinks)
	a.stream = stream.NewClient(a.cfg.StreamURL, a.catalog.AssetIDs, 4096)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.stream.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.detectionLoop(ctx)
	}()

	for i := 0; i < enrichWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.enrichWorker(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.refreshCatalogPeriodically(ctx)
	}()

	healthSrv := health.New(a.cfg.HealthAddr, a.stream, a.dispatcher, a.snapshotCounters)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := healthSrv.Run(ctx); err != nil {
			log.Printf("⚠️  Health server error: %v", err)
		}
	}()

	log.Println("✅ Pipeline running")
	a.gracefulShutdown(cancel)
	wg.Wait()
	return 0
}

// buildSinks constructs the configured notification sinks; at least one
// must be present per config.Validate.
func (a *App) buildSinks() []dispatch.Sink {
	var sinks []dispatch.Sink
	if a.cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, dispatch.NewDiscordSink(a.cfg.DiscordWebhookURL))
	}
	if a.cfg.TelegramBotToken != "" && a.cfg.TelegramChatID != "" {
		sinks = append(sinks, dispatch.NewTelegramSink("", a.cfg.TelegramBotToken, a.cfg.TelegramChatID))
	}
	return sinks
}

// detectionLoop is the single-writer owner of MarketStats and the wallet
// cache: it consumes trades, runs the filter chain, evaluates signals, and
// hands survivors off to the enrichment pool. It never calls Enrich
// itself; its only network I/O is the optional Redis layer behind the
// wallet cache (a Redis Get on a local miss, a Redis Set on Put), which
// blocks the loop for the round trip when Redis is configured.
func (a *App) detectionLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trade, ok := <-a.stream.Trades():
			if !ok {
				return
			}
			a.incTradesReceived()
			a.handleTrade(ctx, trade)
		case result := <-a.walletResults:
			if result.Err != nil {
				continue
			}
			a.wallets.Put(ctx, result.Wallet, result.Info)
		}
	}
}

func (a *App) handleTrade(ctx context.Context, trade model.Trade) {
	ms := a.store.Get(trade.AssetID)

	pass, reason := a.chain.Evaluate(trade, a.catalog, ms)
	if !pass {
		a.incTradesFiltered(reason)
		return
	}

	market, haveMarket := a.catalog.Lookup(trade.AssetID)
	wallet, haveWallet := a.wallets.Get(ctx, trade.Wallet)
	if !haveWallet {
		a.fetcher.FetchAsync(trade.Wallet, a.walletResults)
	}

	fired := signals.Evaluate(trade, market, haveMarket, ms, wallet, haveWallet, a.cfg.Signals)
	ms.Finalize(trade)

	if len(fired) == 0 {
		return
	}
	for _, s := range fired {
		a.incSignalFired(string(s.Kind))
	}

	alert := model.Alert{
		Trade:      trade,
		Signals:    fired,
		Confidence: signals.Confidence(fired, trade.USDValue()),
	}

	select {
	case a.enrichQueue <- alert:
	default:
		log.Printf("⚠️  Enrichment queue full, dispatching %s without enrichment", trade.AssetID)
		a.dispatcher.Enqueue(alert)
	}
}

// enrichWorker drains enrichQueue and performs the network-bound
// enrichment (market lookup, midpoint fetch, wallet cache fallback) off
// the detection goroutine, then hands the alert to the dispatcher. Run as
// a small pool so one slow ODDS_URL response can't starve the others.
func (a *App) enrichWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-a.enrichQueue:
			if !ok {
				return
			}
			a.enricher.Enrich(ctx, &alert)
			a.dispatcher.Enqueue(alert)
		}
	}
}

// refreshCatalogPeriodically keeps the tracked market set current so new
// high-volume markets get picked up without a restart.
func (a *App) refreshCatalogPeriodically(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.catalogSvc.Refresh(ctx, a.catalog); err != nil {
				log.Printf("⚠️  Catalog refresh failed, keeping previous snapshot: %v", err)
			}
		}
	}
}

func (a *App) incTradesReceived() {
	a.countersMu.Lock()
	a.tradesReceived++
	a.countersMu.Unlock()
}

func (a *App) incTradesFiltered(stage string) {
	a.countersMu.Lock()
	a.tradesFiltered[stage]++
	a.countersMu.Unlock()
}

func (a *App) incSignalFired(kind string) {
	a.countersMu.Lock()
	a.signalsFired[kind]++
	a.countersMu.Unlock()
}

func (a *App) snapshotCounters() health.Counters {
	a.countersMu.Lock()
	defer a.countersMu.Unlock()

	filtered := make(map[string]int64, len(a.tradesFiltered))
	for k, v := range a.tradesFiltered {
		filtered[k] = v
	}
	fired := make(map[string]int64, len(a.signalsFired))
	for k, v := range a.signalsFired {
		fired[k] = v
	}
	return health.Counters{
		TradesReceived: a.tradesReceived,
		TradesFiltered: filtered,
		SignalsFired:   fired,
	}
}

// gracefulShutdown blocks until an interrupt or SIGTERM, then cancels ctx
// and closes the optional Redis connection, mirroring the donor's
// signal.Notify + context-cancel shutdown shape.
func (a *App) gracefulShutdown(cancel context.CancelFunc) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	<-interrupt
	fmt.Println("\n🛑 Shutdown signal received, initiating graceful shutdown...")
	cancel()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Printf("Error closing redis: %v", err)
		}
	}
}
