package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"

	"tapewatch/internal/domain"
)

// Alpaca streams trades and quotes from the Alpaca market-data stream.
// Serves as the fallback source when no Polygon key is configured.
type Alpaca struct {
	key    string
	secret string
	feed   string // "iex" or "sip"
	log    *slog.Logger
}

var _ Feed = (*Alpaca)(nil)

func NewAlpaca(key, secret, feed string, log *slog.Logger) *Alpaca {
	if feed == "" {
		feed = "iex"
	}
	return &Alpaca{key: key, secret: secret, feed: feed, log: log.With("feed", "alpaca")}
}

func (a *Alpaca) Name() string { return "alpaca" }

// Run connects the stream client and blocks until ctx is cancelled or the
// client terminates. The client library handles reconnection internally.
func (a *Alpaca) Run(ctx context.Context, symbols []string, h Handler) error {
	c := stream.NewStocksClient(a.feed,
		stream.WithCredentials(a.key, a.secret),
	)

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connecting alpaca stream: %w", err)
	}

	onTrade := func(t stream.Trade) {
		h.OnTrade(domain.Trade{
			Symbol:    t.Symbol,
			Price:     t.Price,
			Size:      int64(t.Size),
			Timestamp: t.Timestamp,
			Exchange:  t.Exchange,
		})
	}
	onQuote := func(q stream.Quote) {
		h.OnQuote(domain.Quote{
			Symbol:    q.Symbol,
			Bid:       q.BidPrice,
			Ask:       q.AskPrice,
			BidSize:   int64(q.BidSize),
			AskSize:   int64(q.AskSize),
			Timestamp: q.Timestamp,
		})
	}

	if err := c.SubscribeToTrades(onTrade, symbols...); err != nil {
		return fmt.Errorf("subscribing to trades: %w", err)
	}
	if err := c.SubscribeToQuotes(onQuote, symbols...); err != nil {
		return fmt.Errorf("subscribing to quotes: %w", err)
	}
	a.log.Info("subscribed", "symbols", len(symbols), "feed", a.feed)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-c.Terminated():
		if err != nil {
			return fmt.Errorf("alpaca stream terminated: %w", err)
		}
		return fmt.Errorf("alpaca stream terminated")
	}
}
