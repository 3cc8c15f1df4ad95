package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nofendian17/polyinsider/cache"
)

// WalletInfo is the cached chain-lookup result for a single wallet.
type WalletInfo struct {
	TxCount   int64
	FetchedAt time.Time
}

func (w WalletInfo) expired(ttl time.Duration) bool {
	return time.Since(w.FetchedAt) > ttl
}

// WalletFetchResult is handed back from an async fetch to the detection
// goroutine, which is the cache's sole writer.
type WalletFetchResult struct {
	Wallet string
	Info   WalletInfo
	Err    error
}

// WalletCache is a TTL cache of wallet transaction counts in front of a
// Polygon JSON-RPC endpoint. It is written only by the detection goroutine
// via Put; Get never mutates. An optional Redis layer sits behind it so
// entries survive a restart, following the donor's nil-safe
// cache.RedisClient pattern: every Redis call is skipped when the client is
// nil, and a failed call falls back to the local map (Put logs the failure).
type WalletCache struct {
	ttl   time.Duration
	local map[string]WalletInfo
	redis *cache.RedisClient
}

// NewWalletCache builds a wallet cache with the given TTL. redis may be nil.
func NewWalletCache(ttl time.Duration, redis *cache.RedisClient) *WalletCache {
	return &WalletCache{
		ttl:   ttl,
		local: make(map[string]WalletInfo),
		redis: redis,
	}
}

// Get returns a cached, unexpired entry. On a local miss it falls through
// to Redis (if configured) and, if found there, populates the local map
// before returning.
func (c *WalletCache) Get(ctx context.Context, wallet string) (WalletInfo, bool) {
	if info, ok := c.local[wallet]; ok && !info.expired(c.ttl) {
		return info, true
	}

	if c.redis != nil {
		var info WalletInfo
		if err := c.redis.Get(ctx, redisKey(wallet), &info); err == nil && !info.expired(c.ttl) {
			c.local[wallet] = info
			return info, true
		}
	}

	return WalletInfo{}, false
}

// Put records a freshly fetched value, the only mutation path for this
// cache, called exclusively from the detection goroutine.
func (c *WalletCache) Put(ctx context.Context, wallet string, info WalletInfo) {
	c.local[wallet] = info
	if c.redis != nil {
		if err := c.redis.Set(ctx, redisKey(wallet), info, c.ttl); err != nil {
			log.Printf("⚠️  Failed to populate wallet cache in Redis for %s: %v", wallet, err)
		}
	}
}

func redisKey(wallet string) string {
	return "polyinsider:wallet:" + strings.ToLower(wallet)
}

// WalletFetcher performs the eth_getTransactionCount JSON-RPC call against
// a Polygon endpoint. It holds no cache state; results are routed back to
// the owning WalletCache through a channel so the single-writer discipline
// holds even though the HTTP round trip happens off the detection goroutine.
type WalletFetcher struct {
	rpcURL string
	client *http.Client
}

// NewWalletFetcher builds a fetcher against rpcURL with a bounded timeout.
func NewWalletFetcher(rpcURL string) *WalletFetcher {
	return &WalletFetcher{
		rpcURL: rpcURL,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// FetchAsync issues the RPC call in its own goroutine and sends the result
// on results, never blocking the caller. Ingestion must never wait on it.
func (f *WalletFetcher) FetchAsync(wallet string, results chan<- WalletFetchResult) {
	go func() {
		info, err := f.fetch(wallet)
		results <- WalletFetchResult{Wallet: wallet, Info: info, Err: err}
	}()
}

func (f *WalletFetcher) fetch(wallet string) (WalletInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reqBody := rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_getTransactionCount",
		Params:  []interface{}{wallet, "latest"},
		ID:      1,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return WalletInfo{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.rpcURL, strings.NewReader(string(data)))
	if err != nil {
		return WalletInfo{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return WalletInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WalletInfo{}, fmt.Errorf("rpc status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return WalletInfo{}, err
	}
	if rpcResp.Error != nil {
		return WalletInfo{}, fmt.Errorf("rpc error: %s", rpcResp.Error.Message)
	}

	count, err := strconv.ParseInt(strings.TrimPrefix(rpcResp.Result, "0x"), 16, 64)
	if err != nil {
		return WalletInfo{}, fmt.Errorf("parse tx count %q: %w", rpcResp.Result, err)
	}

	return WalletInfo{TxCount: count, FetchedAt: time.Now()}, nil
}
