// Package domain defines the core data types shared across the tapewatch
// system: trades, quotes, minute bars, sessions, alerts, and historical
// per-symbol statistics.
package domain

import "time"

// Session labels the Eastern-Time trading session a timestamp falls into.
type Session string

const (
	SessionPremarket  Session = "PREMARKET"
	SessionRegular    Session = "REGULAR"
	SessionPostmarket Session = "POSTMARKET"
	SessionClosed     Session = "CLOSED"
)

// Trade is a single tick from the live feed or a replay driver.
type Trade struct {
	Symbol    string
	Price     float64
	Size      int64
	Timestamp time.Time
	Exchange  string
	ID        string
}

// Quote is the latest NBBO-style quote for a symbol. Sizes may be zero when
// the feed does not provide them.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	BidSize   int64
	AskSize   int64
	Timestamp time.Time
}

// Bar is a per-minute OHLCV aggregate for a single symbol.
//
// Invariants (for Volume > 0): Low <= Open, Close <= High; VWAP in
// [Low, High]; TradeCount >= 1. Open is set by the first trade of the
// minute and never overwritten.
type Bar struct {
	Symbol     string
	Timestamp  time.Time // minute start, America/New_York
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	Value      float64 // sum of price*size
	TradeCount int64
	VWAP       float64
}

// PctChange returns the open-to-close percentage change of the bar.
func (b Bar) PctChange() float64 {
	if b.Open <= 0 {
		return 0
	}
	return (b.Close - b.Open) / b.Open * 100
}

// Stage identifies the alert tier emitted by a detector.
type Stage int

const (
	StageWatch     Stage = 0 // observation only
	StageSetup     Stage = 1 // Stage-1 setup flag created
	StageConfirmed Stage = 2 // Stage-2 confirmed breakout
	StageFastBreak Stage = 3 // Stage-3 fast-break
)

// String returns the human-readable stage label used in alert text.
func (s Stage) String() string {
	switch s {
	case StageWatch:
		return "Watch"
	case StageSetup:
		return "Stage-1 Setup"
	case StageConfirmed:
		return "Breakout Confirmed"
	case StageFastBreak:
		return "Fast-Break"
	}
	return "Unknown"
}

// Bias classifies recent close-versus-VWAP positioning.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
	BiasNeutral Bias = "neutral"
)

// ConfirmPath distinguishes how a Stage-2 confirmation was reached.
type ConfirmPath string

const (
	PathPrimary ConfirmPath = "primary"
	PathAlt     ConfirmPath = "alt"
)

// Alert is the structured record handed to the notification sink. The sink
// owns formatting; the engine guarantees the shape.
type Alert struct {
	Symbol     string
	Stage      Stage
	Path       ConfirmPath // Stage-2 only
	Timestamp  time.Time
	Session    Session
	Price      float64
	PctChange  float64
	RelVol     float64
	Volume     int64
	TradeCount int64
	VWAP       float64
	Spread     *float64 // nil when no quote and no price fallback applied
	Quality    float64

	// Stage-2 fields.
	SetupPrice   float64
	ExpansionPct float64
	CumVolume    int64
}

// Outcome is the simulated forward result of acting on an alert: entry at
// the alert price, stop and target derived from alert quality, resolved
// over the following bars.
type Outcome struct {
	Result      string // "win", "loss", "flat", "timeout"
	EntryPrice  float64
	ExitPrice   float64
	StopPrice   float64
	TargetPrice float64
	PnlPct      float64
	BarsHeld    int
}

// HistStats holds the 20-day per-symbol statistics consumed by the detector.
// Loaded read-only at startup; symbols may be absent.
type HistStats struct {
	Symbol       string
	AvgVolume20d float64
	AvgRange20d  float64
	LastUpdated  time.Time
}

// Liquidity maps the 20-day average volume into a [0,1] liquidity score.
// Symbols without stats are treated as mid-liquidity by callers.
func (h HistStats) Liquidity() float64 {
	liq := h.AvgVolume20d / 1_000_000
	if liq > 1 {
		liq = 1
	}
	if liq < 0 {
		liq = 0
	}
	return liq
}
