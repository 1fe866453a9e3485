// Package feed connects live market-data sources to the detection engine.
// Two sources are supported: the Polygon WebSocket cluster and the Alpaca
// stream. Both deliver trades and quotes to a Handler.
package feed

import (
	"context"

	"tapewatch/internal/domain"
)

// Handler consumes normalized feed events. The engine satisfies this.
type Handler interface {
	OnTrade(t domain.Trade)
	OnQuote(q domain.Quote)
}

// Feed is a live market-data source. Run blocks until ctx is cancelled,
// reconnecting internally on transient errors.
type Feed interface {
	Name() string
	Run(ctx context.Context, symbols []string, h Handler) error
}
