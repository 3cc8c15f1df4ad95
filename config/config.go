package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from the environment at
// startup. There is no config file format beyond the optional .env used for
// local development.
type Config struct {
	// Endpoints
	StreamURL  string
	CatalogURL string
	RPCURL     string
	OddsURL    string

	// Sink credentials
	DiscordWebhookURL string
	TelegramBotToken  string
	TelegramChatID    string

	// Redis (optional advisory cache)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Operational HTTP surface
	HealthAddr string

	Filter    FilterConfig
	Signals   SignalConfig
	Dispatch  DispatchConfig
	MarketCap int // MARKET_LIMIT
}

// FilterConfig holds the three-stage reject-chain thresholds.
type FilterConfig struct {
	MinUSDSize            float64
	ExcludeMarketKeywords []string
	LPDetectionWindowMS   int64
}

// SignalConfig holds the six detection-predicate thresholds.
type SignalConfig struct {
	WhaleThresholdUSD            float64
	WhaleMultiplier              float64
	FreshWalletMaxTxs            int64
	ClusterWindowSeconds         int64
	ClusterMinWallets            int
	TimingHoursThreshold         float64
	OddsMovementThreshold        float64
	ContrarianConsensusThreshold float64
	ContrarianMinSizeUSD         float64
	WalletCacheTTL               time.Duration
}

// DispatchConfig holds the alert dispatcher's pacing, queue and dedup knobs.
type DispatchConfig struct {
	RatePerSecond int
	QueueDepth    int
	DedupWindow   time.Duration
}

// LoadFromEnv loads configuration from environment variables, falling back
// to a local .env file when present (development convenience only).
func LoadFromEnv() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		StreamURL:  getEnvOrDefault("STREAM_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		CatalogURL: getEnvOrDefault("CATALOG_URL", "https://gamma-api.polymarket.com/markets"),
		RPCURL:     getEnvOrDefault("RPC_URL", "https://polygon-rpc.com"),
		OddsURL:    getEnvOrDefault("ODDS_URL", ""),

		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		HealthAddr: getEnvOrDefault("HEALTH_ADDR", ":8090"),

		MarketCap: getEnvInt("MARKET_LIMIT", 100),

		Filter: FilterConfig{
			MinUSDSize:            getEnvFloat("MIN_USD_SIZE", 2000),
			ExcludeMarketKeywords: getEnvStringList("EXCLUDE_MARKET_KEYWORDS", nil),
			LPDetectionWindowMS:   getEnvInt64("LP_DETECTION_WINDOW_MS", 200),
		},

		Signals: SignalConfig{
			WhaleThresholdUSD:            getEnvFloat("WHALE_THRESHOLD_USD", 10000),
			WhaleMultiplier:              getEnvFloat("WHALE_MULTIPLIER", 5),
			FreshWalletMaxTxs:            getEnvInt64("FRESH_WALLET_MAX_TXS", 10),
			ClusterWindowSeconds:         getEnvInt64("CLUSTER_WINDOW_SECONDS", 60),
			ClusterMinWallets:            getEnvInt("CLUSTER_MIN_WALLETS", 3),
			TimingHoursThreshold:         getEnvFloat("TIMING_HOURS_THRESHOLD", 24),
			OddsMovementThreshold:        getEnvFloat("ODDS_MOVEMENT_THRESHOLD", 0.05),
			ContrarianConsensusThreshold: getEnvFloat("CONTRARIAN_CONSENSUS_THRESHOLD", 0.70),
			ContrarianMinSizeUSD:         getEnvFloat("CONTRARIAN_MIN_SIZE_USD", 5000),
			WalletCacheTTL:               time.Duration(getEnvInt("WALLET_CACHE_TTL_MINUTES", 60)) * time.Minute,
		},

		Dispatch: DispatchConfig{
			RatePerSecond: getEnvInt("DISPATCH_RATE_PER_SEC", 1),
			QueueDepth:    getEnvInt("DISPATCH_QUEUE_DEPTH", 256),
			DedupWindow:   time.Duration(getEnvInt("DISPATCH_DEDUP_SECONDS", 30)) * time.Second,
		},
	}
}

// Validate checks that the configuration has what it needs to run. It does
// not validate endpoint reachability — that is the catalog loader's job.
func (c *Config) Validate() error {
	if c.DiscordWebhookURL == "" && (c.TelegramBotToken == "" || c.TelegramChatID == "") {
		return fmt.Errorf("no notification sink configured: set DISCORD_WEBHOOK_URL or TELEGRAM_BOT_TOKEN+TELEGRAM_CHAT_ID")
	}
	return nil
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int64
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvStringList parses a JSON array of strings, e.g. EXCLUDE_MARKET_KEYWORDS.
// An empty or absent value means "accept all" (nil slice).
func getEnvStringList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		log.Printf("⚠️  Failed to parse %s as a JSON string array, ignoring: %v", key, err)
		return defaultValue
	}
	return out
}
