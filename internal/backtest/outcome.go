package backtest

import (
	"sort"
	"time"

	"tapewatch/internal/domain"
)

// maxHoldBars bounds the forward walk per alert.
const maxHoldBars = 60

// winLossBand is the flat zone: exits within ±0.5% classify as flat.
const winLossBand = 0.5

// stopPct returns the protective stop distance below the anchor, tiered by
// alert quality: stronger signals earn tighter stops.
func stopPct(quality float64) float64 {
	switch {
	case quality >= 80:
		return 1.5
	case quality >= 65:
		return 2.0
	default:
		return 2.5
	}
}

// targetPct returns the profit target distance above entry.
func targetPct(quality float64) float64 {
	if quality >= 80 {
		return 9.5
	}
	return 8.0
}

// Simulate walks the bars following an alert and resolves its outcome:
// entry at the alert price, stop anchored below the bar VWAP, target above
// entry, bounded at maxHoldBars. bars must belong to the alert's symbol.
func Simulate(a domain.Alert, bars []domain.Bar) domain.Outcome {
	entry := a.Price
	anchor := a.VWAP
	if anchor <= 0 {
		anchor = entry
	}
	stop := anchor * (1 - stopPct(a.Quality)/100)
	target := entry * (1 + targetPct(a.Quality)/100)

	forward := barsAfter(bars, a.Symbol, a.Timestamp)
	if len(forward) == 0 {
		return domain.Outcome{
			Result:      "timeout",
			EntryPrice:  entry,
			ExitPrice:   entry,
			StopPrice:   stop,
			TargetPrice: target,
		}
	}
	if len(forward) > maxHoldBars {
		forward = forward[:maxHoldBars]
	}

	exit := forward[len(forward)-1].Close
	held := len(forward)
	for i, b := range forward {
		if b.Low <= stop {
			exit = stop
			held = i + 1
			break
		}
		if b.High >= target {
			exit = target
			held = i + 1
			break
		}
	}

	pnl := (exit - entry) / entry * 100
	result := "flat"
	if pnl >= winLossBand {
		result = "win"
	} else if pnl <= -winLossBand {
		result = "loss"
	}

	return domain.Outcome{
		Result:      result,
		EntryPrice:  entry,
		ExitPrice:   exit,
		StopPrice:   stop,
		TargetPrice: target,
		PnlPct:      pnl,
		BarsHeld:    held,
	}
}

// barsAfter returns the symbol's bars strictly after ts, ascending.
func barsAfter(bars []domain.Bar, symbol string, ts time.Time) []domain.Bar {
	var out []domain.Bar
	for _, b := range bars {
		if b.Symbol == symbol && b.Timestamp.After(ts) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
