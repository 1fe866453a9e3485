package monitor

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"tapewatch/internal/domain"
	"tapewatch/internal/engine"
	"tapewatch/internal/market"
	"tapewatch/internal/store"
)

// Worker periodically snapshots engine state while a session is open so a
// restart mid-session resumes with warm bars. With a bar store attached it
// also archives the retained bars each cycle.
type Worker struct {
	eng      *engine.Engine
	clock    *market.Clock
	dir      string
	interval time.Duration
	bars     store.BarStore // optional
	log      *slog.Logger
}

func NewWorker(eng *engine.Engine, clock *market.Clock, dir string, interval time.Duration, log *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{eng: eng, clock: clock, dir: dir, interval: interval, log: log}
}

// WithBarStore attaches a bar archive target.
func (w *Worker) WithBarStore(bs store.BarStore) *Worker {
	w.bars = bs
	return w
}

// SnapshotPath returns the per-day snapshot file for ts.
func (w *Worker) SnapshotPath(ts time.Time) string {
	day := ts.In(w.clock.Location()).Format("2006-01-02")
	return filepath.Join(w.dir, "session-"+day+".json")
}

// Restore loads today's snapshot if one exists.
func (w *Worker) Restore() error {
	return w.eng.LoadSnapshot(w.SnapshotPath(time.Now()))
}

// Run snapshots every interval while the market is open and once more at
// the transition to CLOSED, then idles.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	wasOpen := false
	for {
		select {
		case <-ctx.Done():
			// Final snapshot so a restart during off-hours keeps state.
			if wasOpen {
				w.snapshot(time.Now())
			}
			return
		case now := <-ticker.C:
			_, session := w.clock.Classify(now)
			open := session != domain.SessionClosed
			if open || wasOpen {
				w.snapshot(now)
			}
			wasOpen = open
		}
	}
}

func (w *Worker) snapshot(ts time.Time) {
	path := w.SnapshotPath(ts)
	if err := w.eng.SaveSnapshot(path); err != nil {
		w.log.Warn("snapshot failed", "path", path, "err", err)
	}
	if w.bars != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := w.bars.WriteBars(ctx, w.eng.Bars()); err != nil {
			w.log.Warn("bar archive failed", "err", err)
		}
	}
}
