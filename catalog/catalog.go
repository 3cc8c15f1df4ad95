// Package catalog loads and maintains the set of markets the stream should
// subscribe to, ranked by recent volume. It is read-only from the rest of
// the pipeline's point of view: a snapshot is fetched once at startup and
// refreshed in the background, and every other stage only reads the
// *Catalog through Lookup and AssetIDs.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/nofendian17/polyinsider/model"
)

const (
	maxFetchAttempts = 3
	retryDelay       = 2 * time.Second
	fetchTimeout     = 10 * time.Second
)

// gammaMarket mirrors the subset of the Gamma markets API response this
// loader cares about; everything else is ignored by json.Unmarshal.
type gammaMarket struct {
	ConditionID string   `json:"conditionId"`
	Question    string   `json:"question"`
	EndDate     string   `json:"endDate"`
	Volume24hr  float64  `json:"volume24hr,string"`
	ClobTokenID []string `json:"clobTokenIds"`
	Active      bool     `json:"active"`
	Closed      bool     `json:"closed"`
}

// Catalog is a ranked snapshot of tracked markets, safe for concurrent
// read access from any number of goroutines; Refresh swaps its contents
// under mu.
type Catalog struct {
	mu      sync.RWMutex
	byAsset map[string]model.Market
	assets  []string // ranked order, volume24h descending
}

// NewTestCatalog builds a Catalog directly from a fixed market list,
// bypassing the HTTP loader. Exported for use by other packages' tests
// that need a populated catalog without a fake server.
func NewTestCatalog(markets []model.Market) *Catalog {
	cat := &Catalog{}
	cat.replace(markets)
	return cat
}

// Lookup returns catalog metadata for an asset_id, or false if the asset
// isn't tracked (e.g. it fell out of the top-N ranking).
func (c *Catalog) Lookup(assetID string) (model.Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byAsset[assetID]
	return m, ok
}

// AssetIDs returns the ranked list of tracked asset IDs, used by the
// streaming client to build its subscription message.
func (c *Catalog) AssetIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.assets))
	copy(out, c.assets)
	return out
}

func (c *Catalog) replace(markets []model.Market) {
	byAsset := make(map[string]model.Market, len(markets))
	assets := make([]string, 0, len(markets))
	for _, m := range markets {
		byAsset[m.AssetID] = m
		assets = append(assets, m.AssetID)
	}
	c.mu.Lock()
	c.byAsset = byAsset
	c.assets = assets
	c.mu.Unlock()
}

// Loader fetches the market catalog from the Gamma markets endpoint.
type Loader struct {
	url    string
	limit  int
	client *http.Client
}

// NewLoader builds a Loader against the given endpoint, keeping only the
// top limit markets by 24h volume.
func NewLoader(url string, limit int) *Loader {
	return &Loader{
		url:   url,
		limit: limit,
		client: &http.Client{
			Timeout: fetchTimeout,
		},
	}
}

// Load fetches the catalog once, retrying transient failures up to
// maxFetchAttempts times with a fixed pause between attempts. The final
// failure is returned wrapped, for the orchestrator to treat as fatal.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		markets, err := l.fetchOnce(ctx)
		if err == nil {
			cat := &Catalog{}
			cat.replace(rank(markets, l.limit))
			log.Printf("📊 Catalog loaded: %d markets tracked (of %d fetched)", len(cat.assets), len(markets))
			return cat, nil
		}
		lastErr = err
		log.Printf("⚠️  Catalog fetch attempt %d/%d failed: %v", attempt, maxFetchAttempts, err)
		if attempt < maxFetchAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("catalog: exhausted %d attempts against %s: %w", maxFetchAttempts, l.url, lastErr)
}

// Refresh re-fetches the catalog and atomically swaps the contents of cat
// in place, so existing references keep working with the new data.
func (l *Loader) Refresh(ctx context.Context, cat *Catalog) error {
	markets, err := l.fetchOnce(ctx)
	if err != nil {
		return err
	}
	cat.replace(rank(markets, l.limit))
	return nil
}

func (l *Loader) fetchOnce(ctx context.Context) ([]model.Market, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var raw []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]model.Market, 0, len(raw))
	for _, m := range raw {
		if !m.Active || m.Closed || len(m.ClobTokenID) == 0 {
			continue
		}
		endTime, _ := time.Parse(time.RFC3339, m.EndDate)
		outcomes := []model.Outcome{model.Yes, model.No}
		for _, tokenID := range m.ClobTokenID {
			out = append(out, model.Market{
				AssetID:   tokenID,
				Title:     m.Question,
				EndTime:   endTime,
				Volume24h: m.Volume24hr,
				Outcomes:  outcomes,
			})
		}
	}
	return out, nil
}

// rank sorts by 24h volume descending and truncates to limit (0 means no
// truncation), matching the "track the most active markets" budget.
func rank(markets []model.Market, limit int) []model.Market {
	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].Volume24h > markets[j].Volume24h
	})
	if limit > 0 && len(markets) > limit {
		markets = markets[:limit]
	}
	return markets
}
