package backtest

import (
	"math"
	"testing"
	"time"

	"tapewatch/internal/domain"
)

func outcomeAlert(quality float64) domain.Alert {
	return domain.Alert{
		Symbol:    "SIM",
		Stage:     domain.StageConfirmed,
		Price:     10.00,
		VWAP:      10.00,
		Quality:   quality,
		Timestamp: time.Date(2025, 3, 4, 14, 30, 0, 0, time.UTC),
	}
}

func forwardBar(minutesAfter int, high, low, close float64) domain.Bar {
	return domain.Bar{
		Symbol:    "SIM",
		Timestamp: time.Date(2025, 3, 4, 14, 30, 0, 0, time.UTC).Add(time.Duration(minutesAfter) * time.Minute),
		Open:      close, High: high, Low: low, Close: close,
	}
}

func TestSimulateTargetHit(t *testing.T) {
	a := outcomeAlert(70) // stop 2.0%, target 8.0%

	bars := []domain.Bar{
		forwardBar(1, 10.30, 10.00, 10.25),
		forwardBar(2, 10.85, 10.20, 10.80), // 10.85 >= 10.80 target
		forwardBar(3, 11.50, 10.80, 11.40),
	}

	o := Simulate(a, bars)
	if o.Result != "win" {
		t.Fatalf("result = %q, want win", o.Result)
	}
	if o.ExitPrice != 10.80 {
		t.Errorf("exit = %v, want target 10.80", o.ExitPrice)
	}
	if o.BarsHeld != 2 {
		t.Errorf("bars held = %d, want 2", o.BarsHeld)
	}
	if math.Abs(o.PnlPct-8.0) > 1e-9 {
		t.Errorf("pnl = %v, want 8.0", o.PnlPct)
	}
}

func TestSimulateStopHit(t *testing.T) {
	a := outcomeAlert(70) // stop at VWAP anchor - 2% = 9.80

	bars := []domain.Bar{
		forwardBar(1, 10.10, 9.75, 9.78),
	}

	o := Simulate(a, bars)
	if o.Result != "loss" {
		t.Fatalf("result = %q, want loss", o.Result)
	}
	if o.ExitPrice != 9.80 {
		t.Errorf("exit = %v, want stop 9.80", o.ExitPrice)
	}
	if o.BarsHeld != 1 {
		t.Errorf("bars held = %d, want 1", o.BarsHeld)
	}
}

func TestSimulateQualityTiers(t *testing.T) {
	tests := []struct {
		quality    float64
		wantStop   float64
		wantTarget float64
	}{
		{85, 9.85, 10.95},
		{70, 9.80, 10.80},
		{55, 9.75, 10.80},
	}
	for _, tt := range tests {
		o := Simulate(outcomeAlert(tt.quality), []domain.Bar{forwardBar(1, 10.01, 9.99, 10.00)})
		if math.Abs(o.StopPrice-tt.wantStop) > 1e-9 {
			t.Errorf("q=%v stop = %v, want %v", tt.quality, o.StopPrice, tt.wantStop)
		}
		if math.Abs(o.TargetPrice-tt.wantTarget) > 1e-9 {
			t.Errorf("q=%v target = %v, want %v", tt.quality, o.TargetPrice, tt.wantTarget)
		}
	}
}

func TestSimulateFlatAndTimeout(t *testing.T) {
	a := outcomeAlert(70)

	// Drifts sideways: exits at the last close inside the band.
	o := Simulate(a, []domain.Bar{
		forwardBar(1, 10.05, 9.95, 10.02),
		forwardBar(2, 10.06, 9.96, 10.03),
	})
	if o.Result != "flat" {
		t.Errorf("result = %q, want flat", o.Result)
	}
	if o.ExitPrice != 10.03 || o.BarsHeld != 2 {
		t.Errorf("exit/held = %v/%d", o.ExitPrice, o.BarsHeld)
	}

	// No forward bars at all.
	o = Simulate(a, nil)
	if o.Result != "timeout" {
		t.Errorf("result = %q, want timeout", o.Result)
	}
	if o.ExitPrice != a.Price || o.PnlPct != 0 {
		t.Errorf("timeout exit = %v pnl = %v", o.ExitPrice, o.PnlPct)
	}
}

func TestSimulateMaxHold(t *testing.T) {
	a := outcomeAlert(70)

	// 100 sideways bars, then a would-be target hit past the hold limit.
	var bars []domain.Bar
	for i := 1; i <= 100; i++ {
		close := 10.10
		if i == 90 {
			bars = append(bars, forwardBar(i, 12.00, 10.00, 11.90))
			continue
		}
		bars = append(bars, forwardBar(i, 10.15, 10.05, close))
	}

	o := Simulate(a, bars)
	if o.BarsHeld != maxHoldBars {
		t.Errorf("bars held = %d, want %d", o.BarsHeld, maxHoldBars)
	}
	if o.ExitPrice != 10.10 {
		t.Errorf("exit = %v, want last in-window close 10.10", o.ExitPrice)
	}
}

func TestSimulateIgnoresPriorAndForeignBars(t *testing.T) {
	a := outcomeAlert(70)

	prior := forwardBar(-5, 9.00, 8.50, 8.60) // before the alert
	other := forwardBar(1, 50, 40, 45)
	other.Symbol = "OTHER"

	o := Simulate(a, []domain.Bar{prior, other, forwardBar(1, 10.05, 9.95, 10.01)})
	if o.BarsHeld != 1 || o.ExitPrice != 10.01 {
		t.Errorf("outcome = %+v", o)
	}
}
