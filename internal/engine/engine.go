// Package engine implements the momentum detection core: the per-symbol
// minute-bar aggregator, the quote book, the quality scorer, and the staged,
// persistence, and likelihood detector profiles.
package engine

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"tapewatch/internal/config"
	"tapewatch/internal/domain"
	"tapewatch/internal/market"
)

// Sink receives alerts from the engine. Implementations must not block:
// delivery is fire-and-forget and a false return is logged, not retried.
type Sink interface {
	Send(alert domain.Alert) bool
}

// Detector is the capability shared by all profiles. The engine implements
// it; the active profile is a configuration choice.
type Detector interface {
	OnTrade(t domain.Trade)
	OnQuote(q domain.Quote)
	OnBar(b domain.Bar)
	Reset()
}

// profile evaluates one symbol after its current bar has been updated.
// Implementations run with the data lock held.
type profile interface {
	name() string
	evaluate(e *Engine, s *symbolState, ev *evalContext)
}

// Engine holds all per-symbol detection state. Bars, rolling windows, flags,
// counters, and trackers are guarded by mu; the quote book by quoteMu.
type Engine struct {
	mu      sync.Mutex
	quoteMu sync.Mutex

	log     *slog.Logger
	clock   *market.Clock
	cfg     config.Detector
	sess    config.Sessions
	stats   map[string]domain.HistStats
	sink    Sink
	profile profile

	symbols map[string]*symbolState
	quotes  map[string]domain.Quote
	watch   []domain.Alert
}

var _ Detector = (*Engine)(nil)

// New creates an engine with the given detection profile. stats may be nil;
// sink may be nil (alerts are then recorded but not delivered).
func New(cfg config.Detector, sess config.Sessions, stats map[string]domain.HistStats, sink Sink, clock *market.Clock, log *slog.Logger) *Engine {
	e := &Engine{
		log:     log,
		clock:   clock,
		cfg:     cfg,
		sess:    sess,
		stats:   stats,
		sink:    sink,
		symbols: make(map[string]*symbolState),
		quotes:  make(map[string]domain.Quote),
	}
	switch cfg.Profile {
	case "persistence":
		e.profile = &persistenceProfile{}
	case "likelihood":
		e.profile = &likelihoodProfile{}
	default:
		e.profile = &stagedProfile{}
	}
	return e
}

// Profile returns the name of the active detection profile.
func (e *Engine) Profile() string { return e.profile.name() }

// evalContext carries the derived per-bar metrics shared by all profiles.
type evalContext struct {
	symbol  string
	minute  time.Time
	eventTS time.Time
	session domain.Session
	params  config.SessionParams
	bar     *domain.Bar

	relVol    float64
	avgPrev3  float64
	prevVol   int64 // previous completed minute volume; -1 when unknown
	spread    *float64
	liquidity float64
	volThresh float64
	pctEarly  float64
}

// OnTrade folds a trade into its minute bar and runs the active profile.
// Malformed and out-of-order events are skipped; CLOSED sessions
// short-circuit with no state changes.
func (e *Engine) OnTrade(t domain.Trade) {
	if t.Symbol == "" || t.Price <= 0 || t.Size < 0 {
		skippedEvents.WithLabelValues("malformed").Inc()
		return
	}
	minute, session := e.clock.Classify(t.Timestamp)
	if session == domain.SessionClosed {
		skippedEvents.WithLabelValues("closed").Inc()
		return
	}
	tradesTotal.Inc()

	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state(t.Symbol)
	if t.Timestamp.Before(s.lastEventTS) {
		e.log.Debug("out-of-order trade skipped",
			"symbol", t.Symbol, "ts", t.Timestamp, "last", s.lastEventTS)
		skippedEvents.WithLabelValues("out_of_order").Inc()
		return
	}
	s.lastEventTS = t.Timestamp

	bar := e.advance(s, t.Symbol, minute)
	if bar.TradeCount == 0 {
		bar.Open = t.Price
		bar.High = t.Price
		bar.Low = t.Price
	}
	bar.Close = t.Price
	if t.Price > bar.High {
		bar.High = t.Price
	}
	if t.Price < bar.Low {
		bar.Low = t.Price
	}
	bar.Volume += t.Size
	bar.Value += t.Price * float64(t.Size)
	bar.TradeCount++
	if bar.Volume > 0 {
		bar.VWAP = bar.Value / float64(bar.Volume)
	} else {
		bar.VWAP = t.Price
	}

	e.evaluate(s, bar, minute, t.Timestamp, session)
}

// OnBar installs a completed minute bar (from replay or an aggregate feed)
// and runs the same evaluation path the trade path uses.
func (e *Engine) OnBar(b domain.Bar) {
	if b.Symbol == "" || b.Close <= 0 || b.Volume < 0 {
		skippedEvents.WithLabelValues("malformed").Inc()
		return
	}
	minute, session := e.clock.Classify(b.Timestamp)
	if session == domain.SessionClosed {
		skippedEvents.WithLabelValues("closed").Inc()
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state(b.Symbol)
	if minute.Before(s.lastEventTS) {
		skippedEvents.WithLabelValues("out_of_order").Inc()
		return
	}
	s.lastEventTS = minute

	bar := e.advance(s, b.Symbol, minute)
	bar.Open = b.Open
	bar.High = b.High
	bar.Low = b.Low
	bar.Close = b.Close
	bar.Volume = b.Volume
	bar.TradeCount = b.TradeCount
	if b.Value > 0 {
		bar.Value = b.Value
	} else {
		bar.Value = b.VWAP * float64(b.Volume)
	}
	if b.VWAP > 0 {
		bar.VWAP = b.VWAP
	} else if bar.Volume > 0 {
		bar.VWAP = bar.Value / float64(bar.Volume)
	} else {
		bar.VWAP = b.Close
	}

	e.evaluate(s, bar, minute, minute, session)
}

// OnQuote stores the latest quote for a symbol. No history is retained.
func (e *Engine) OnQuote(q domain.Quote) {
	if q.Symbol == "" {
		skippedEvents.WithLabelValues("malformed").Inc()
		return
	}
	quotesTotal.Inc()

	e.quoteMu.Lock()
	e.quotes[q.Symbol] = q
	e.quoteMu.Unlock()
}

// Reset drops all per-symbol state, the quote book, and the watch list.
// Used at session start and between replay days.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.symbols = make(map[string]*symbolState)
	e.watch = nil
	e.mu.Unlock()

	e.quoteMu.Lock()
	e.quotes = make(map[string]domain.Quote)
	e.quoteMu.Unlock()
}

// Bars returns a copy of every retained minute bar across all symbols,
// for periodic archiving.
func (e *Engine) Bars() []domain.Bar {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Bar
	for _, s := range e.symbols {
		for _, b := range s.bars {
			out = append(out, *b)
		}
	}
	return out
}

// WatchAlerts returns a copy of the in-memory watch list (backtest
// consumption).
func (e *Engine) WatchAlerts() []domain.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Alert, len(e.watch))
	copy(out, e.watch)
	return out
}

// ---------------------------------------------------------------------------
// Shared evaluation plumbing
// ---------------------------------------------------------------------------

// evaluate derives the shared metrics and hands off to the active profile.
// Called with the data lock held.
func (e *Engine) evaluate(s *symbolState, bar *domain.Bar, minute, eventTS time.Time, session domain.Session) {
	liquidity := e.cfg.DefaultLiquidity
	var hs domain.HistStats
	hasStats := false
	if e.stats != nil {
		if st, ok := e.stats[bar.Symbol]; ok {
			hs = st
			hasStats = true
			liquidity = st.Liquidity()
		}
	}
	// Illiquid symbols are silently skipped: no alerts of any kind.
	if hasStats && liquidity < e.cfg.MinLiquidity {
		return
	}

	params := e.sess.For(session)

	volThresh := params.VolBase
	if hasStats && hs.AvgVolume20d > 0 {
		if scaled := hs.AvgVolume20d * params.VolMult; scaled > volThresh {
			volThresh = scaled
		}
	}
	pctEarly := params.PctEarly
	if hasStats && hs.AvgRange20d > 0 && bar.Open > 0 {
		// avg_range is in dollars; 1.2x its ratio to the open is the floor.
		if dyn := hs.AvgRange20d / bar.Open * 1.2; dyn > pctEarly {
			pctEarly = dyn
		}
	}

	avg := s.rollingAvg()
	relVol := float64(bar.Volume) / math.Max(avg, 1)

	ev := &evalContext{
		symbol:    bar.Symbol,
		minute:    minute,
		eventTS:   eventTS,
		session:   session,
		params:    params,
		bar:       bar,
		relVol:    relVol,
		avgPrev3:  avg,
		prevVol:   s.prevMinuteVolume(),
		spread:    e.SpreadRatio(bar.Symbol, bar.Close),
		liquidity: liquidity,
		volThresh: volThresh,
		pctEarly:  pctEarly,
	}

	e.profile.evaluate(e, s, ev)
}

// cooldown returns the configured per-symbol alert cooldown.
func (e *Engine) cooldown() time.Duration {
	min := e.cfg.CooldownMinutes
	if min <= 0 {
		min = 5
	}
	return time.Duration(min) * time.Minute
}

// emit delivers an alert through the sink and records the cooldown tracker.
// Watch alerts use a separate tracker so they never consume cooldown
// against higher stages.
func (e *Engine) emit(s *symbolState, a domain.Alert) {
	alertsTotal.WithLabelValues(a.Stage.String()).Inc()
	if a.Stage == domain.StageWatch {
		s.lastWatchAlert = a.Timestamp
	} else {
		s.lastAlert = a.Timestamp
		s.lastAlertStage = a.Stage
	}

	if e.cfg.DisableNotifications || e.sink == nil {
		return
	}
	if !e.sink.Send(a) {
		e.log.Warn("alert delivery failed", "symbol", a.Symbol, "stage", a.Stage.String())
	}
}

// allowAlert applies the 5-minute per-symbol cooldown. Stage-2 may upgrade a
// Stage-1 alert inside the window; Stage-3 bypasses the window entirely.
func (e *Engine) allowAlert(s *symbolState, stage domain.Stage, at time.Time) bool {
	if stage == domain.StageFastBreak {
		return true
	}
	if s.lastAlert.IsZero() || at.Sub(s.lastAlert) >= e.cooldown() {
		return true
	}
	return stage == domain.StageConfirmed && s.lastAlertStage == domain.StageSetup
}

// allowWatch applies the cooldown to sink-forwarded Watch alerts only.
func (e *Engine) allowWatch(s *symbolState, at time.Time) bool {
	return s.lastWatchAlert.IsZero() || at.Sub(s.lastWatchAlert) >= e.cooldown()
}

// newAlert fills the payload fields shared by every stage.
func newAlert(ev *evalContext, stage domain.Stage, quality float64) domain.Alert {
	return domain.Alert{
		Symbol:     ev.symbol,
		Stage:      stage,
		Timestamp:  ev.eventTS,
		Session:    ev.session,
		Price:      ev.bar.Close,
		PctChange:  ev.bar.PctChange(),
		RelVol:     ev.relVol,
		Volume:     ev.bar.Volume,
		TradeCount: ev.bar.TradeCount,
		VWAP:       ev.bar.VWAP,
		Spread:     ev.spread,
		Quality:    quality,
	}
}
