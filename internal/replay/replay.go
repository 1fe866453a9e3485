package replay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tapewatch/internal/domain"
	"tapewatch/internal/engine"
)

// Replayer feeds archived minute bars through a detector in timestamp
// order, synthesizing tight quotes so the spread path behaves as it would
// live. State is reset between trading days.
type Replayer struct {
	det engine.Detector
	log *slog.Logger
}

func New(det engine.Detector, log *slog.Logger) *Replayer {
	return &Replayer{det: det, log: log}
}

// RunDir replays every daily flat file (*.csv.gz) under dir in date order.
// symbols filters the tape; empty means everything.
func (r *Replayer) RunDir(ctx context.Context, dir string, symbols []string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading replay dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv.gz") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no flat files under %s", dir)
	}
	sort.Strings(files)

	filter := symbolSet(symbols)
	for _, file := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.RunDay(ctx, file, filter); err != nil {
			return err
		}
	}
	return nil
}

// RunDay replays one daily flat file. The detector is reset first so days
// never bleed into each other.
func (r *Replayer) RunDay(ctx context.Context, path string, filter map[string]struct{}) error {
	bars, err := ReadDay(path, filter)
	if err != nil {
		return err
	}
	r.det.Reset()
	r.log.Info("replaying day", "file", filepath.Base(path), "bars", len(bars))
	return r.Feed(ctx, bars)
}

// Feed pushes bars through the detector in chronological order (ties broken
// by symbol for determinism).
func (r *Replayer) Feed(ctx context.Context, bars []domain.Bar) error {
	sorted := make([]domain.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].Symbol < sorted[j].Symbol
	})

	for i, b := range sorted {
		if i%4096 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		// Archived tapes have no quote stream; a tight synthetic quote
		// keeps the spread gates on their live code path.
		r.det.OnQuote(domain.Quote{
			Symbol:    b.Symbol,
			Bid:       b.Close * 0.999,
			Ask:       b.Close * 1.001,
			Timestamp: b.Timestamp,
		})
		r.det.OnBar(b)
	}
	return nil
}

func symbolSet(symbols []string) map[string]struct{} {
	if len(symbols) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[strings.ToUpper(s)] = struct{}{}
	}
	return set
}
