// Package notify implements best-effort operator notifications over the
// Telegram Bot API. Every send failure is logged and swallowed — the
// Strategy Engine never treats a notification failure as a reason to
// change control flow.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ladderbot/internal/config"
	"ladderbot/pkg/types"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends formatted notifications to a single Telegram chat.
type Telegram struct {
	enabled  bool
	botToken string
	chatID   string
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
}

// NewTelegram creates a Notifier. If credentials are missing, it is
// disabled and every send is a silent no-op — a warn-and-continue startup
// rather than a fatal error, since notifications are never load-bearing.
func NewTelegram(cfg config.NotifierConfig, logger *slog.Logger) *Telegram {
	enabled := cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != ""
	if !enabled {
		logger.Warn("telegram notifications disabled (missing credentials or not enabled)")
	}
	return &Telegram{
		enabled:  enabled,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  telegramAPIBase,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With("component", "notifier"),
	}
}

// SendMessage posts a single Markdown-formatted message. Failures are
// logged, never returned — callers treat notification as fire-and-forget.
func (t *Telegram) SendMessage(message string) {
	if !t.enabled {
		return
	}

	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	})
	if err != nil {
		t.logger.Error("marshal telegram payload", "error", err)
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	resp, err := t.http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.logger.Error("telegram send failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Error("telegram send non-200", "status", resp.StatusCode)
	}
}

// SendStartup announces process start with the opening USDC balance.
func (t *Telegram) SendStartup(balance decimal.Decimal) {
	t.SendMessage(fmt.Sprintf("*BOT STARTED*\n\nBalance: $%s\nMode: LIVE TRADING", balance.StringFixed(2)))
}

// SendEventDiscovered notifies about a newly discovered event.
func (t *Telegram) SendEventDiscovered(event *types.Event) {
	minutes := int(event.TimeUntilStart(time.Now()).Minutes())
	t.SendMessage(fmt.Sprintf("*NEW EVENT*\n\n`%s`\nLIVE in: %d minutes", event.Slug, minutes))
}

// SendLadderPlaced notifies about ladder placement for an event.
func (t *Telegram) SendLadderPlaced(eventSlug string, orderCount int) {
	t.SendMessage(fmt.Sprintf("*LADDER PLACED*\n\n`%s`\nOrders: %d", eventSlug, orderCount))
}

// SendFill notifies about an order fill, with PnL when known (sells only).
func (t *Telegram) SendFill(order *types.TrackedOrder, pnl decimal.Decimal) {
	action := "BUY"
	if order.Type == types.SELL {
		action = "SELL"
	}
	lines := []string{
		"*ORDER FILLED*",
		fmt.Sprintf("`%s`", order.EventSlug),
		"",
		fmt.Sprintf("%s | %s", order.Side.DisplayName(), action),
		fmt.Sprintf("Price: %s¢", order.Price.Mul(decimal.NewFromInt(100)).StringFixed(0)),
		fmt.Sprintf("Size: %s shares", order.OriginalSize.String()),
	}
	if order.Type == types.SELL {
		sign := "+"
		if pnl.IsNegative() {
			sign = "-"
		}
		lines = append(lines, fmt.Sprintf("PnL: %s$%s", sign, pnl.Abs().StringFixed(2)))
	}
	t.SendMessage(strings.Join(lines, "\n"))
}

// SendPhaseTransition notifies about an event going LIVE.
func (t *Telegram) SendPhaseTransition(eventSlug string, cancelledOrders int) {
	t.SendMessage(fmt.Sprintf("*EVENT LIVE*\n\n`%s`\nBuys cancelled: %d\nMode: exits only", eventSlug, cancelledOrders))
}

// SendCycleReport sends the per-event completion report.
func (t *Telegram) SendCycleReport(result types.CycleResult) {
	lines := []string{
		"*CYCLE COMPLETE*",
		fmt.Sprintf("`%s`", result.EventSlug),
		"",
		"*Fills:*",
	}

	if len(result.FillsYes) > 0 {
		lines = append(lines, fmt.Sprintf("YES: %s (%d fills)", formatCents(result.FillsYes), len(result.FillsYes)))
	} else {
		lines = append(lines, "YES: ---")
	}
	if len(result.FillsNo) > 0 {
		lines = append(lines, fmt.Sprintf("NO: %s (%d fills)", formatCents(result.FillsNo), len(result.FillsNo)))
	} else {
		lines = append(lines, "NO: ---")
	}

	lines = append(lines, "", "*Result:*")
	sign := "+"
	if result.TotalPnL.IsNegative() {
		sign = "-"
	}
	lines = append(lines, fmt.Sprintf("Realized PnL: %s$%s", sign, result.TotalPnL.Abs().StringFixed(2)))

	if !result.StartTime.IsZero() && !result.EndTime.IsZero() {
		duration := int(result.EndTime.Sub(result.StartTime).Minutes())
		lines = append(lines, fmt.Sprintf("Duration: %d minutes", duration))
	}

	t.SendMessage(strings.Join(lines, "\n"))
}

// SendError sends an operator alert.
func (t *Telegram) SendError(errMsg string) {
	t.SendMessage(fmt.Sprintf("*ERROR*\n\n%s", errMsg))
}

func formatCents(prices []decimal.Decimal) string {
	parts := make([]string, len(prices))
	hundred := decimal.NewFromInt(100)
	for i, p := range prices {
		parts[i] = p.Mul(hundred).StringFixed(0)
	}
	return strings.Join(parts, ", ")
}
