package backtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"tapewatch/internal/config"
	"tapewatch/internal/domain"
)

// Grid defines the threshold sweep. Empty axes fall back to the configured
// value.
type Grid struct {
	PctEarly   []float64
	RelVolS1   []float64
	PctConfirm []float64
	RelVolS2   []float64
}

// Cell is one grid combination with its backtest summary.
type Cell struct {
	PctEarly   float64
	RelVolS1   float64
	PctConfirm float64
	RelVolS2   float64
	Alerts     int
	Wins       int
	Losses     int
	WinRate    float64
	AvgPnlPct  float64
}

// Search sweeps the grid over the supplied days, running a full backtest
// per cell. The override applies to every session's parameters.
func Search(ctx context.Context, g Grid, cfg config.Detector, sess config.Sessions,
	stats map[string]domain.HistStats, days [][]domain.Bar, log *slog.Logger) ([]Cell, error) {

	axis := func(vals []float64, fallback float64) []float64 {
		if len(vals) == 0 {
			return []float64{fallback}
		}
		return vals
	}
	pctEarly := axis(g.PctEarly, sess.Regular.PctEarly)
	relVolS1 := axis(g.RelVolS1, sess.Regular.RelVolS1)
	pctConfirm := axis(g.PctConfirm, sess.Regular.PctConfirm)
	relVolS2 := axis(g.RelVolS2, sess.Regular.RelVolS2)

	var cells []Cell
	for _, pe := range pctEarly {
		for _, r1 := range relVolS1 {
			for _, pc := range pctConfirm {
				for _, r2 := range relVolS2 {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}

					s := sess
					override(&s.Premarket, pe, r1, pc, r2)
					override(&s.Regular, pe, r1, pc, r2)
					override(&s.Postmarket, pe, r1, pc, r2)

					runner := &Runner{Cfg: cfg, Sessions: s, Stats: stats, Log: log}
					res, err := runner.Run(ctx, days)
					if err != nil {
						return nil, err
					}

					cells = append(cells, Cell{
						PctEarly:   pe,
						RelVolS1:   r1,
						PctConfirm: pc,
						RelVolS2:   r2,
						Alerts:     res.Alerts,
						Wins:       res.Wins,
						Losses:     res.Losses,
						WinRate:    res.WinRate,
						AvgPnlPct:  res.AvgPnlPct,
					})
					log.Info("grid cell done",
						"pct_early", pe, "relvol_s1", r1,
						"pct_confirm", pc, "relvol_s2", r2,
						"alerts", res.Alerts, "win_rate", res.WinRate)
				}
			}
		}
	}
	return cells, nil
}

func override(p *config.SessionParams, pctEarly, relVolS1, pctConfirm, relVolS2 float64) {
	p.PctEarly = pctEarly
	p.RelVolS1 = relVolS1
	p.PctConfirm = pctConfirm
	p.RelVolS2 = relVolS2
}

// WriteCSV writes the sweep results sorted as produced.
func WriteCSV(path string, cells []Cell) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating grid csv %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"pct_early", "relvol_s1", "pct_confirm", "relvol_s2",
		"alerts", "wins", "losses", "win_rate", "avg_pnl_pct"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, c := range cells {
		rec := []string{
			strconv.FormatFloat(c.PctEarly, 'f', 2, 64),
			strconv.FormatFloat(c.RelVolS1, 'f', 2, 64),
			strconv.FormatFloat(c.PctConfirm, 'f', 2, 64),
			strconv.FormatFloat(c.RelVolS2, 'f', 2, 64),
			strconv.Itoa(c.Alerts),
			strconv.Itoa(c.Wins),
			strconv.Itoa(c.Losses),
			strconv.FormatFloat(c.WinRate, 'f', 3, 64),
			strconv.FormatFloat(c.AvgPnlPct, 'f', 3, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
