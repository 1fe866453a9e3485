package store

import (
	"context"
	"log/slog"
	"time"

	"tapewatch/internal/domain"
)

// RecordingSink persists every alert before handing it to the next sink.
// Persistence failures are logged, never block delivery.
type RecordingSink struct {
	Store AlertStore
	Next  interface{ Send(domain.Alert) bool }
	Log   *slog.Logger
}

func (r *RecordingSink) Send(a domain.Alert) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := r.Store.SaveAlert(ctx, a); err != nil {
		r.Log.Warn("persisting alert failed", "symbol", a.Symbol, "err", err)
	}
	if r.Next == nil {
		return true
	}
	return r.Next.Send(a)
}
