package notify

import (
	"log/slog"

	"tapewatch/internal/domain"
)

// LogSink writes alerts to the structured log only. Used when notifications
// are disabled and as the backtest sink.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink { return &LogSink{log: log} }

func (l *LogSink) Send(a domain.Alert) bool {
	l.log.Info("alert",
		"symbol", a.Symbol,
		"stage", a.Stage.String(),
		"session", string(a.Session),
		"price", a.Price,
		"pct_change", a.PctChange,
		"rel_vol", a.RelVol,
		"quality", a.Quality,
	)
	return true
}
