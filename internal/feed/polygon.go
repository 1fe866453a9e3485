package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"tapewatch/internal/domain"
	"tapewatch/internal/market"
)

const defaultPolygonURL = "wss://socket.polygon.io/stocks"

// Polygon streams trades (T.*) and quotes (Q.*) from the Polygon stocks
// WebSocket cluster.
type Polygon struct {
	apiKey string
	url    string
	log    *slog.Logger
}

var _ Feed = (*Polygon)(nil)

// NewPolygon creates the Polygon feed. url may be empty for the production
// cluster; tests point it at a local server.
func NewPolygon(apiKey, url string, log *slog.Logger) *Polygon {
	if url == "" {
		url = defaultPolygonURL
	}
	return &Polygon{apiKey: apiKey, url: url, log: log.With("feed", "polygon")}
}

func (p *Polygon) Name() string { return "polygon" }

// Run connects, authenticates, subscribes, and pumps events into h. On any
// connection error it reconnects with capped exponential backoff until ctx
// is cancelled.
func (p *Polygon) Run(ctx context.Context, symbols []string, h Handler) error {
	backoff := time.Second
	for {
		err := p.session(ctx, symbols, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Warn("stream disconnected, reconnecting", "err", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

// polygonEvent is the union of the message shapes we consume. Polygon sends
// arrays of these.
type polygonEvent struct {
	Ev     string  `json:"ev"`
	Status string  `json:"status"`
	Msg    string  `json:"message"`
	Sym    string  `json:"sym"`
	Price  float64 `json:"p"`
	Size   int64   `json:"s"`
	Bid    float64 `json:"bp"`
	BidSz  int64   `json:"bs"`
	Ask    float64 `json:"ap"`
	AskSz  int64   `json:"as"`
	TS     int64   `json:"t"`
}

func (p *Polygon) session(ctx context.Context, symbols []string, h Handler) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, p.url, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dialing %s: %w", p.url, err)
	}
	defer conn.Close()

	auth := map[string]string{"action": "auth", "params": p.apiKey}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}

	params := make([]string, 0, len(symbols)*2)
	for _, sym := range symbols {
		params = append(params, "T."+sym, "Q."+sym)
	}
	sub := map[string]string{"action": "subscribe", "params": strings.Join(params, ",")}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("sending subscribe: %w", err)
	}
	p.log.Info("subscribed", "symbols", len(symbols))

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading message: %w", err)
		}

		var events []polygonEvent
		if err := json.Unmarshal(msg, &events); err != nil {
			p.log.Debug("unparseable message skipped", "err", err)
			continue
		}

		for _, evt := range events {
			switch evt.Ev {
			case "T":
				h.OnTrade(domain.Trade{
					Symbol:    evt.Sym,
					Price:     evt.Price,
					Size:      evt.Size,
					Timestamp: market.NormalizeTimestamp(evt.TS),
				})
			case "Q":
				h.OnQuote(domain.Quote{
					Symbol:    evt.Sym,
					Bid:       evt.Bid,
					Ask:       evt.Ask,
					BidSize:   evt.BidSz,
					AskSize:   evt.AskSz,
					Timestamp: market.NormalizeTimestamp(evt.TS),
				})
			case "status":
				if evt.Status == "auth_failed" {
					return fmt.Errorf("authentication failed: %s", evt.Msg)
				}
				p.log.Debug("status", "status", evt.Status, "message", evt.Msg)
			}
		}
	}
}
