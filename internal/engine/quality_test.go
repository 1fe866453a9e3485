package engine

import "testing"

func TestScoreComponents(t *testing.T) {
	// Relative volume alone, unknown spread.
	q := Score(ScoreInput{RelVol: 6, VolThresh: 90000, MinTrades: 3})
	// 6/8*28 = 21, plus the flat 5 for unknown spread.
	if q != 26.0 {
		t.Errorf("relvol-only score = %v, want 26.0", q)
	}

	// Relative volume caps at 8x.
	q = Score(ScoreInput{RelVol: 20, VolThresh: 90000, MinTrades: 3})
	if q != 33.0 {
		t.Errorf("capped relvol score = %v, want 33.0", q)
	}
}

func TestScoreParabolicPenalty(t *testing.T) {
	spread := 0.001
	q := Score(ScoreInput{
		RelVol:      3,
		PctChange:   14,
		Volume:      180000,
		VolThresh:   90000,
		TradeCount:  30,
		MinTrades:   3,
		Spread:      &spread,
		SpreadLimit: 0.020,
	})
	// 10.5 + 18 + 14 + 12 + 9.5 - 3 (parabolic, no sustained volume).
	if q != 61.0 {
		t.Errorf("parabolic score = %v, want 61.0", q)
	}

	// Sustained volume waives the penalty.
	q = Score(ScoreInput{
		RelVol:          3,
		PctChange:       14,
		Volume:          180000,
		VolThresh:       90000,
		TradeCount:      30,
		MinTrades:       3,
		Spread:          &spread,
		SpreadLimit:     0.020,
		VolumeSustained: true,
	})
	// Expansion block contributes 0 (ExpansionPct < 0.6) but the penalty
	// disappears.
	if q != 64.0 {
		t.Errorf("sustained score = %v, want 64.0", q)
	}
}

func TestScoreChurnPenalty(t *testing.T) {
	tests := []struct {
		name   string
		volume int64
		trades int64
		want   float64
	}{
		{"tiny prints", 10000, 100, -4}, // avg 100
		{"small prints", 15000, 100, -2}, // avg 150
		{"normal prints", 50000, 100, 0}, // avg 500
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Score(ScoreInput{RelVol: 4, Volume: tt.volume, VolThresh: 90000,
				TradeCount: tt.trades, MinTrades: 3})
			// Isolate the penalty by comparing against the same input with a
			// non-churn average trade size (density caps identically).
			ref := Score(ScoreInput{RelVol: 4, Volume: tt.volume, VolThresh: 90000,
				TradeCount: tt.volume / 500, MinTrades: 3})
			got := q - ref
			if got != tt.want {
				t.Errorf("churn delta = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreClamp(t *testing.T) {
	spread := 0.0001
	q := Score(ScoreInput{
		RelVol:          16,
		PctChange:       10,
		Volume:          500000,
		VolThresh:       90000,
		TradeCount:      1000,
		MinTrades:       3,
		Spread:          &spread,
		SpreadLimit:     0.020,
		ExpansionPct:    8,
		Acceleration:    true,
		VolumeSustained: true,
	})
	if q < 0 || q > 100 {
		t.Errorf("score %v outside [0,100]", q)
	}
}
