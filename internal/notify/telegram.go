// Package notify delivers alerts to external sinks. The engine hands off
// structured alerts; formatting and transport live here.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tapewatch/internal/domain"
	"tapewatch/internal/util"
)

const (
	telegramAPI = "https://api.telegram.org"
	queueCap    = 100
)

// Telegram queues alerts and delivers them through the Bot API from a
// single worker, preserving order. The queue is bounded: when full, the
// oldest pending alert is dropped so fresh signals are never starved.
type Telegram struct {
	token  string
	chatID string
	base   string
	client *http.Client
	limit  *util.RateLimiter
	log    *slog.Logger
	queue  chan domain.Alert
}

// NewTelegram creates a sink for the given bot token and chat. baseURL
// overrides the API host for tests; empty means the real API.
func NewTelegram(token, chatID, baseURL string, log *slog.Logger) *Telegram {
	if baseURL == "" {
		baseURL = telegramAPI
	}
	return &Telegram{
		token:  token,
		chatID: chatID,
		base:   baseURL,
		client: &http.Client{Timeout: 10 * time.Second},
		limit:  util.NewRateLimiter(25),
		log:    log,
		queue:  make(chan domain.Alert, queueCap),
	}
}

// Send enqueues an alert without blocking. Returns false only when the
// alert could not be queued even after evicting the oldest entry.
func (t *Telegram) Send(a domain.Alert) bool {
	select {
	case t.queue <- a:
		return true
	default:
	}
	select {
	case dropped := <-t.queue:
		t.log.Warn("notification queue full, dropping oldest",
			"dropped_symbol", dropped.Symbol, "dropped_stage", dropped.Stage.String())
	default:
	}
	select {
	case t.queue <- a:
		return true
	default:
		return false
	}
}

// Run drains the queue until ctx is cancelled. Each delivery is retried
// with backoff; a failed message is logged and dropped, never re-queued.
func (t *Telegram) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-t.queue:
			if err := t.deliver(ctx, a); err != nil {
				t.log.Error("telegram delivery failed",
					"symbol", a.Symbol, "stage", a.Stage.String(), "err", err)
			}
		}
	}
}

func (t *Telegram) deliver(ctx context.Context, a domain.Alert) error {
	if err := t.limit.Wait(ctx); err != nil {
		return err
	}
	return util.Retry(ctx, 3, time.Second, func() error {
		return t.post(ctx, Format(a))
	})
}

func (t *Telegram) post(ctx context.Context, text string) error {
	form := url.Values{
		"chat_id":    {t.chatID},
		"text":       {text},
		"parse_mode": {"HTML"},
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Format renders the alert message text. Stage-2 alerts carry the setup
// context; others stay compact.
func Format(a domain.Alert) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s <b>%s</b> — %s [%s]\n",
		stageEmoji(a.Stage), a.Symbol, a.Stage.String(), a.Session)
	fmt.Fprintf(&b, "Price $%.2f (%+.1f%%)  RelVol %.1fx\n", a.Price, a.PctChange, a.RelVol)
	fmt.Fprintf(&b, "Vol %s  Trades %d  VWAP $%.2f\n",
		formatVolume(a.Volume), a.TradeCount, a.VWAP)
	if a.Spread != nil {
		fmt.Fprintf(&b, "Spread %.2f%%  ", *a.Spread*100)
	}
	fmt.Fprintf(&b, "Quality %.1f", a.Quality)

	if a.Stage == domain.StageConfirmed {
		fmt.Fprintf(&b, "\nSetup $%.2f  Expansion %+.1f%%  CumVol %s",
			a.SetupPrice, a.ExpansionPct, formatVolume(a.CumVolume))
		if a.Path == domain.PathAlt {
			b.WriteString("  (consolidation)")
		}
	}
	fmt.Fprintf(&b, "\n%s ET", a.Timestamp.Format("15:04:05"))
	return b.String()
}

func stageEmoji(s domain.Stage) string {
	switch s {
	case domain.StageWatch:
		return "👀"
	case domain.StageSetup:
		return "⚡"
	case domain.StageConfirmed:
		return "🚀"
	case domain.StageFastBreak:
		return "🔥"
	}
	return "•"
}

func formatVolume(v int64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}
