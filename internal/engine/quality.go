package engine

import "math"

// ScoreInput feeds the alert quality scorer. Spread is nil when unknown.
type ScoreInput struct {
	RelVol      float64
	PctChange   float64
	Volume      int64
	VolThresh   float64
	TradeCount  int64
	MinTrades   int64
	Spread      *float64
	SpreadLimit float64

	// Expansion block, zero/false outside Stage-2 contexts.
	ExpansionPct    float64
	Acceleration    bool
	VolumeSustained bool
}

// Score computes the 0-100 alert quality for one bar. Weighted components:
// relative volume 28, percent move 18, volume versus threshold 14, trade
// density 12, spread tightness 10, expansion block 18; parabolic and churn
// penalties subtract after. Rounded to one decimal.
func Score(in ScoreInput) float64 {
	q := 0.0

	q += math.Min(in.RelVol, 8) / 8 * 28

	absPct := math.Abs(in.PctChange)
	q += math.Min(absPct, 14) / 14 * 18

	if in.VolThresh > 0 {
		q += math.Min(float64(in.Volume)/in.VolThresh, 2) / 2 * 14
	}

	minTrades := in.MinTrades
	if minTrades < 1 {
		minTrades = 1
	}
	q += math.Min(float64(in.TradeCount)/float64(minTrades), 3) / 3 * 12

	switch {
	case in.Spread == nil:
		q += 5
	case in.SpreadLimit > 0:
		q += math.Max(0, (in.SpreadLimit-*in.Spread)/in.SpreadLimit) * 10
	}

	if in.ExpansionPct >= 0.6 {
		block := math.Min(in.ExpansionPct/6, 0.6)
		if in.Acceleration {
			block += 0.3
		}
		if in.VolumeSustained {
			block += 0.3
		}
		if block > 1 {
			block = 1
		}
		q += block * 18
	}

	// Parabolic moves without sustained volume read as blow-offs.
	if in.PctChange >= 11 && !in.VolumeSustained {
		q -= math.Min(in.PctChange-11, 6) / 6 * 6
	}

	// Churn: many tiny prints inflate trade density.
	if in.TradeCount > 0 {
		avgSize := float64(in.Volume) / float64(in.TradeCount)
		if avgSize < 120 {
			q -= 4
		} else if avgSize < 200 {
			q -= 2
		}
	}

	if q < 0 {
		q = 0
	}
	if q > 100 {
		q = 100
	}
	return math.Round(q*10) / 10
}
