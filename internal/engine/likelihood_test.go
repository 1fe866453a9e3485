package engine

import (
	"math"
	"testing"
	"time"

	"tapewatch/internal/domain"
)

// seedBullish installs n quiet bars closing above VWAP so the bias reads
// bullish once the window fills.
func seedBullish(eng *Engine, sym string, hour, min, n int) {
	for i := n; i >= 1; i-- {
		ts := et(eng, hour, min).Add(-time.Duration(i) * time.Minute)
		eng.OnBar(domain.Bar{Symbol: sym, Timestamp: ts,
			Open: 10.00, High: 10.05, Low: 9.85, Close: 10.00,
			Volume: 30000, TradeCount: 100, VWAP: 9.90})
	}
}

func TestLikelihoodArmHoldConfirm(t *testing.T) {
	eng, sink := newTestEngine("likelihood", nil)

	seedBullish(eng, "LIKE", 9, 48, 3)

	// 5x relative volume and +5% arms a pending setup.
	eng.OnBar(domain.Bar{Symbol: "LIKE", Timestamp: et(eng, 9, 48),
		Open: 10.00, High: 10.55, Low: 10.00, Close: 10.50,
		Volume: 150000, TradeCount: 200, VWAP: 10.30})

	setups := sink.byStage(domain.StageSetup)
	if len(setups) != 1 {
		t.Fatalf("setup alerts = %d, want 1", len(setups))
	}
	if setups[0].SetupPrice != 10.50 {
		t.Errorf("setup price = %v, want 10.50", setups[0].SetupPrice)
	}
	if eng.symbols["LIKE"].likeFlag == nil {
		t.Fatal("no pending setup after arm")
	}

	// A drifting minute holds the flag but is too early to confirm.
	eng.OnBar(domain.Bar{Symbol: "LIKE", Timestamp: et(eng, 9, 49),
		Open: 10.50, High: 10.60, Low: 10.45, Close: 10.55,
		Volume: 100000, TradeCount: 150, VWAP: 10.50})
	if eng.symbols["LIKE"].likeFlag == nil {
		t.Fatal("pending setup cancelled on drift")
	}
	if got := len(sink.byStage(domain.StageConfirmed)); got != 0 {
		t.Fatalf("confirmed before the two-minute floor: %d", got)
	}

	// Follow-through of +4.3% on sustained volume confirms.
	eng.OnBar(domain.Bar{Symbol: "LIKE", Timestamp: et(eng, 9, 50),
		Open: 10.55, High: 11.00, Low: 10.55, Close: 10.95,
		Volume: 160000, TradeCount: 250, VWAP: 10.70})

	confirms := sink.byStage(domain.StageConfirmed)
	if len(confirms) != 1 {
		t.Fatalf("confirmed alerts = %d, want 1", len(confirms))
	}
	c := confirms[0]
	if c.Quality != 62.8 {
		t.Errorf("confirm quality = %v, want 62.8", c.Quality)
	}
	if c.SetupPrice != 10.50 {
		t.Errorf("confirm setup price = %v, want 10.50", c.SetupPrice)
	}
	wantFT := (10.95 - 10.50) / 10.50 * 100
	if math.Abs(c.ExpansionPct-wantFT) > 1e-9 {
		t.Errorf("expansion = %v, want %v", c.ExpansionPct, wantFT)
	}
	if c.CumVolume != 410000 {
		t.Errorf("cum volume = %d, want 410000", c.CumVolume)
	}
	if eng.symbols["LIKE"].likeFlag != nil {
		t.Error("pending setup not cleared after confirm")
	}
}

func TestLikelihoodAutoCancelOnFade(t *testing.T) {
	eng, sink := newTestEngine("likelihood", nil)

	seedBullish(eng, "FDE", 9, 48, 3)
	eng.OnBar(domain.Bar{Symbol: "FDE", Timestamp: et(eng, 9, 48),
		Open: 10.00, High: 10.55, Low: 10.00, Close: 10.50,
		Volume: 150000, TradeCount: 200, VWAP: 10.30})
	if eng.symbols["FDE"].likeFlag == nil {
		t.Fatal("no pending setup after arm")
	}

	// Price gives back more than 1% from the arm price: cancel.
	eng.OnBar(domain.Bar{Symbol: "FDE", Timestamp: et(eng, 9, 49),
		Open: 10.50, High: 10.50, Low: 10.15, Close: 10.20,
		Volume: 100000, TradeCount: 150, VWAP: 10.35})

	if eng.symbols["FDE"].likeFlag != nil {
		t.Fatal("pending setup survived a -2.9% fade")
	}
	if got := len(sink.byStage(domain.StageConfirmed)); got != 0 {
		t.Errorf("confirmed alerts after cancel = %d, want 0", got)
	}
}
