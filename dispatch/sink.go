package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nofendian17/polyinsider/helpers"
	"github.com/nofendian17/polyinsider/model"
)

const (
	colorHigh   = 15158332 // red
	colorMedium = 15105570 // orange
)

var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Sink delivers a formatted alert to one outbound channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert model.Alert) error
}

// deliverWithRetry builds and sends req via build on each attempt (a fresh
// request is required since an http.Request body can't be replayed),
// retrying on 5xx/network errors and honoring Retry-After on 429. 4xx
// other than 429 is a permanent failure. Grounded in the donor's
// deliverWebhook retry loop (notifications/webhook_manager.go).
func deliverWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) error {
	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		req, err := build()
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			if !sleepBeforeRetry(ctx, attempt, 0) {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode
		body := resp.Body
		_ = body.Close()

		if status >= 200 && status < 300 {
			return nil
		}

		if status == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			if !sleepBeforeRetry(ctx, attempt, retryAfter) {
				return lastErr
			}
			continue
		}

		if status >= 500 {
			lastErr = fmt.Errorf("server error %d", status)
			if !sleepBeforeRetry(ctx, attempt, 0) {
				return lastErr
			}
			continue
		}

		// 4xx other than 429: permanent failure, do not retry.
		return fmt.Errorf("permanent failure, status %d", status)
	}
	return lastErr
}

// sleepBeforeRetry waits the attempt-indexed backoff (or override, for
// Retry-After) and reports whether another attempt remains.
func sleepBeforeRetry(ctx context.Context, attempt int, override time.Duration) bool {
	if attempt >= len(retryDelays) {
		return false
	}
	delay := retryDelays[attempt]
	if override > 0 {
		delay = override
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 5 * time.Second
}

// DiscordSink posts a Discord-style embed webhook.
type DiscordSink struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSink builds a sink against a Discord-compatible webhook URL.
func NewDiscordSink(webhookURL string) *DiscordSink {
	return &DiscordSink{webhookURL: webhookURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *DiscordSink) Name() string { return "discord" }

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (s *DiscordSink) Send(ctx context.Context, alert model.Alert) error {
	payload := discordPayload{Embeds: []discordEmbed{buildDiscordEmbed(alert)}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	return deliverWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func buildDiscordEmbed(alert model.Alert) discordEmbed {
	color := colorMedium
	if alert.Confidence == model.High {
		color = colorHigh
	}

	title := alert.MarketTitle
	if title == "" {
		title = alert.Trade.AssetID
	}

	return discordEmbed{
		Title:       fmt.Sprintf("🚨 %s Signal — %s", alert.Confidence, title),
		Description: signalSummary(alert),
		Color:       color,
		Fields:      alertFields(alert),
	}
}

// TelegramSink posts to a Telegram-style Bot API sendMessage endpoint.
type TelegramSink struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSink builds a sink against the Telegram Bot API using token
// and chatID. apiBase defaults to the public Bot API root when empty.
func NewTelegramSink(apiBase, token, chatID string) *TelegramSink {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &TelegramSink{apiBase: apiBase, token: token, chatID: chatID, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *TelegramSink) Name() string { return "telegram" }

type telegramPayload struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (s *TelegramSink) Send(ctx context.Context, alert model.Alert) error {
	payload := telegramPayload{
		ChatID:    s.chatID,
		Text:      buildTelegramText(alert),
		ParseMode: "HTML",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)
	return deliverWithRetry(ctx, s.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func buildTelegramText(alert model.Alert) string {
	title := alert.MarketTitle
	if title == "" {
		title = alert.Trade.AssetID
	}
	text := fmt.Sprintf("<b>🚨 %s Signal</b>\n<a href=\"https://polymarket.com\">%s</a>\n%s",
		alert.Confidence, escapeHTML(title), signalSummary(alert))
	for _, f := range alertFields(alert) {
		text += fmt.Sprintf("\n<b>%s:</b> %s", f.Name, f.Value)
	}
	return text
}

func escapeHTML(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

func signalSummary(alert model.Alert) string {
	summary := ""
	for i, s := range alert.Signals {
		if i > 0 {
			summary += ", "
		}
		summary += string(s.Kind)
	}
	return summary
}

func alertFields(alert model.Alert) []discordEmbedField {
	fields := []discordEmbedField{
		{Name: "Side", Value: fmt.Sprintf("%s %s", alert.Trade.Side, alert.Trade.Outcome), Inline: true},
		{Name: "USD Value", Value: helpers.FormatUSD(alert.Trade.USDValue()), Inline: true},
		{Name: "Wallet", Value: alert.Trade.Wallet, Inline: false},
	}
	if alert.HasMidpoint {
		fields = append(fields, discordEmbedField{Name: "Midpoint", Value: fmt.Sprintf("%.3f", alert.MidpointOdds), Inline: true})
	}
	if alert.HasWalletTxs {
		fields = append(fields, discordEmbedField{Name: "Wallet Txs", Value: strconv.FormatInt(alert.WalletTxs, 10), Inline: true})
	}
	if !alert.MarketEndAt.IsZero() {
		fields = append(fields, discordEmbedField{Name: "Closes", Value: alert.MarketEndAt.Format(time.RFC3339), Inline: true})
	}
	return fields
}
