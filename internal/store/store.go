// Package store persists minute bars and emitted alerts. Bars live in
// Parquet files on disk; alerts and simulated outcomes in SQLite.
package store

import (
	"context"
	"time"

	"tapewatch/internal/domain"
)

// BarStore persists and retrieves minute OHLCV bars.
type BarStore interface {
	// WriteBars persists a batch of minute bars.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the symbol within [start, end].
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all symbols with archived bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// AlertStore persists emitted alerts and their simulated outcomes.
type AlertStore interface {
	// SaveAlert inserts an alert record, returning its row id.
	SaveAlert(ctx context.Context, a domain.Alert) (int64, error)

	// SaveOutcome attaches a simulated outcome to an alert.
	SaveOutcome(ctx context.Context, alertID int64, o domain.Outcome) error

	// ListAlerts returns alerts for a symbol ordered by time, up to limit.
	// Empty symbol means all symbols.
	ListAlerts(ctx context.Context, symbol string, limit int) ([]domain.Alert, error)
}
