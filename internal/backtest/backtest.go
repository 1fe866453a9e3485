package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"tapewatch/internal/config"
	"tapewatch/internal/domain"
	"tapewatch/internal/engine"
	"tapewatch/internal/market"
	"tapewatch/internal/replay"
	"tapewatch/internal/store"
)

// Result aggregates one backtest run.
type Result struct {
	Days        int              `json:"days"`
	Bars        int              `json:"bars"`
	Alerts      int              `json:"alerts"`
	ByStage     map[string]int   `json:"by_stage"`
	Wins        int              `json:"wins"`
	Losses      int              `json:"losses"`
	Flats       int              `json:"flats"`
	Timeouts    int              `json:"timeouts"`
	WinRate     float64          `json:"win_rate"`
	AvgPnlPct   float64          `json:"avg_pnl_pct"`
	TotalPnlPct float64          `json:"total_pnl_pct"`
	PerAlert    []AlertOutcome   `json:"alerts_detail,omitempty"`
}

// AlertOutcome pairs an alert with its simulated outcome in the report.
type AlertOutcome struct {
	Symbol  string  `json:"symbol"`
	Stage   string  `json:"stage"`
	Time    string  `json:"time"`
	Price   float64 `json:"price"`
	Quality float64 `json:"quality"`
	Result  string  `json:"result"`
	PnlPct  float64 `json:"pnl_pct"`
}

// Runner replays daily tapes through a fresh engine per day, simulates
// each alert forward, and aggregates.
type Runner struct {
	Cfg      config.Detector
	Sessions config.Sessions
	Stats    map[string]domain.HistStats
	Alerts   store.AlertStore // optional persistence
	Log      *slog.Logger
}

// Run backtests the supplied per-day bar slices (already symbol-filtered).
func (r *Runner) Run(ctx context.Context, days [][]domain.Bar) (*Result, error) {
	sink := NewCaptureSink()
	clock := market.NewClock()
	eng := engine.New(r.Cfg, r.Sessions, r.Stats, sink, clock, r.Log)
	rep := replay.New(eng, r.Log)

	res := &Result{ByStage: make(map[string]int)}
	for _, bars := range days {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		eng.Reset()
		sink.Clear()
		if err := rep.Feed(ctx, bars); err != nil {
			return nil, err
		}
		res.Days++
		res.Bars += len(bars)
		r.score(ctx, res, sink.Alerts(), bars)
	}

	finalize(res)
	return res, nil
}

// score simulates outcomes for one day's alerts against that day's bars.
// Watch alerts are counted but not traded.
func (r *Runner) score(ctx context.Context, res *Result, alerts []domain.Alert, bars []domain.Bar) {
	for _, a := range alerts {
		res.Alerts++
		res.ByStage[a.Stage.String()]++
		if a.Stage == domain.StageWatch {
			continue
		}

		o := Simulate(a, bars)
		switch o.Result {
		case "win":
			res.Wins++
		case "loss":
			res.Losses++
		case "flat":
			res.Flats++
		case "timeout":
			res.Timeouts++
		}
		res.AvgPnlPct += o.PnlPct
		res.TotalPnlPct += o.PnlPct
		res.PerAlert = append(res.PerAlert, AlertOutcome{
			Symbol:  a.Symbol,
			Stage:   a.Stage.String(),
			Time:    a.Timestamp.Format("2006-01-02 15:04"),
			Price:   a.Price,
			Quality: a.Quality,
			Result:  o.Result,
			PnlPct:  o.PnlPct,
		})

		if r.Alerts != nil {
			id, err := r.Alerts.SaveAlert(ctx, a)
			if err != nil {
				r.Log.Warn("persisting alert failed", "symbol", a.Symbol, "err", err)
				continue
			}
			if err := r.Alerts.SaveOutcome(ctx, id, o); err != nil {
				r.Log.Warn("persisting outcome failed", "symbol", a.Symbol, "err", err)
			}
		}
	}
}

func finalize(res *Result) {
	decided := res.Wins + res.Losses
	if decided > 0 {
		res.WinRate = float64(res.Wins) / float64(decided)
	}
	if n := len(res.PerAlert); n > 0 {
		res.AvgPnlPct /= float64(n)
	}
}

// WriteReport writes the JSON report.
func WriteReport(path string, res *Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
