package engine

import (
	"testing"
	"time"

	"tapewatch/internal/config"
	"tapewatch/internal/domain"
	"tapewatch/internal/market"
)

func TestPersistenceCounterBuildsToAlert(t *testing.T) {
	eng, sink := newTestEngine("persistence", nil)

	// Seed the rolling window.
	for i := 3; i >= 1; i-- {
		ts := et(eng, 9, 48).Add(-time.Duration(i) * time.Minute)
		eng.OnBar(domain.Bar{Symbol: "PERS", Timestamp: ts,
			Open: 10.00, High: 10.00, Low: 10.00, Close: 10.00,
			Volume: 5000, TradeCount: 40, VWAP: 10.00})
	}

	// First qualifying minute: counter reaches 1, below the mid-liquidity
	// requirement of 2.
	eng.OnBar(domain.Bar{Symbol: "PERS", Timestamp: et(eng, 9, 48),
		Open: 10.00, High: 10.50, Low: 10.00, Close: 10.50,
		Volume: 100000, TradeCount: 200, VWAP: 10.30})
	if len(sink.alerts) != 0 {
		t.Fatalf("alert after one qualifying minute: %d", len(sink.alerts))
	}

	// Second qualifying minute confirms.
	eng.OnBar(domain.Bar{Symbol: "PERS", Timestamp: et(eng, 9, 49),
		Open: 10.50, High: 11.05, Low: 10.50, Close: 11.05,
		Volume: 180000, TradeCount: 220, VWAP: 10.80})

	if len(sink.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(sink.alerts))
	}
	a := sink.alerts[0]
	if a.Stage != domain.StageSetup {
		t.Errorf("stage = %v, want Stage-1", a.Stage)
	}
	if a.Quality < 50 {
		t.Errorf("quality = %v, want >= 50", a.Quality)
	}
}

func TestPersistenceCounterDecays(t *testing.T) {
	eng, _ := newTestEngine("persistence", nil)

	for i := 3; i >= 1; i-- {
		ts := et(eng, 9, 48).Add(-time.Duration(i) * time.Minute)
		eng.OnBar(domain.Bar{Symbol: "DECY", Timestamp: ts,
			Open: 10, High: 10, Low: 10, Close: 10, Volume: 5000, TradeCount: 40, VWAP: 10})
	}

	// Qualify, then go quiet: the committed counter must bleed back to 0.
	eng.OnBar(domain.Bar{Symbol: "DECY", Timestamp: et(eng, 9, 48),
		Open: 10.00, High: 10.50, Low: 10.00, Close: 10.50,
		Volume: 100000, TradeCount: 200, VWAP: 10.30})
	eng.OnBar(domain.Bar{Symbol: "DECY", Timestamp: et(eng, 9, 49),
		Open: 10.50, High: 10.50, Low: 10.50, Close: 10.50,
		Volume: 4000, TradeCount: 10, VWAP: 10.50})
	eng.OnBar(domain.Bar{Symbol: "DECY", Timestamp: et(eng, 9, 50),
		Open: 10.50, High: 10.50, Low: 10.50, Close: 10.50,
		Volume: 4000, TradeCount: 10, VWAP: 10.50})

	if got := eng.symbols["DECY"].momentum; got != 0 {
		t.Errorf("committed counter = %d, want 0", got)
	}
}

func TestPersistenceMinimums(t *testing.T) {
	p := &persistenceProfile{}

	cfg := config.Default()
	eng := New(cfg.Detector, cfg.Sessions, nil, nil, market.NewClock(), testLogger())

	tests := []struct {
		liquidity float64
		want      int
	}{
		{0.9, 1},
		{0.5, 2},
		{0.1, 3},
	}
	for _, tt := range tests {
		if got := p.minPersistence(eng, tt.liquidity); got != tt.want {
			t.Errorf("minPersistence(liq=%v) = %d, want %d", tt.liquidity, got, tt.want)
		}
	}

	// Backtest mode flattens the requirement to 1.
	cfg.Detector.BacktestMode = true
	eng = New(cfg.Detector, cfg.Sessions, nil, nil, market.NewClock(), testLogger())
	if got := p.minPersistence(eng, 0.1); got != 1 {
		t.Errorf("backtest minPersistence = %d, want 1", got)
	}
}
