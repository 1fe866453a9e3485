package engine

import (
	"math"

	"tapewatch/internal/domain"
)

// stagedProfile is the balanced-quality flag state machine: Watch,
// Stage-1 setup, Stage-2 confirmation (primary and consolidation paths),
// and the independent Stage-3 fast-break.
type stagedProfile struct{}

var _ profile = (*stagedProfile)(nil)

func (p *stagedProfile) name() string { return "staged" }

func (p *stagedProfile) evaluate(e *Engine, s *symbolState, ev *evalContext) {
	p.watch(e, s, ev)
	if s.flag == nil {
		p.stage1(e, s, ev)
	} else {
		p.stage2(e, s, ev)
	}
	p.stage3(e, s, ev)
}

// ---------------------------------------------------------------------------
// Watch
// ---------------------------------------------------------------------------

// watch appends observation-only candidates to the in-memory watch list and
// forwards the strongest ones to the sink. Never creates a flag.
func (p *stagedProfile) watch(e *Engine, s *symbolState, ev *evalContext) {
	bar := ev.bar
	if ev.relVol < ev.params.WatchRelVol || bar.PctChange() < ev.params.WatchPct {
		return
	}
	if bar.TradeCount < 2 {
		return
	}
	if ev.spread != nil && *ev.spread >= ev.params.SpreadLimit*1.4 {
		return
	}
	// Declining tape: current minute running well under the previous one.
	if ev.prevVol > 0 && float64(bar.Volume) < 0.4*float64(ev.prevVol) {
		return
	}

	q := Score(ScoreInput{
		RelVol:      ev.relVol,
		PctChange:   bar.PctChange(),
		Volume:      bar.Volume,
		VolThresh:   ev.volThresh,
		TradeCount:  bar.TradeCount,
		MinTrades:   ev.params.MinTrades,
		Spread:      ev.spread,
		SpreadLimit: ev.params.SpreadLimit,
	})

	a := newAlert(ev, domain.StageWatch, q)
	if !s.lastWatchMinute.Equal(ev.minute) {
		s.lastWatchMinute = ev.minute
		e.watch = append(e.watch, a)
	}
	if q >= e.cfg.WatchSinkQuality && e.allowWatch(s, ev.eventTS) {
		e.emit(s, a)
	}
}

// ---------------------------------------------------------------------------
// Stage-1 setup
// ---------------------------------------------------------------------------

func (p *stagedProfile) stage1(e *Engine, s *symbolState, ev *evalContext) {
	bar := ev.bar
	pct := bar.PctChange()

	if ev.relVol < ev.params.RelVolS1 || pct < ev.pctEarly {
		return
	}
	if ev.spread != nil && *ev.spread >= ev.params.SpreadLimit {
		return
	}
	if bar.TradeCount < 3 {
		return
	}
	if ev.prevVol > 0 && float64(bar.Volume) < 0.4*float64(ev.prevVol) {
		return
	}

	q := Score(ScoreInput{
		RelVol:      ev.relVol,
		PctChange:   pct,
		Volume:      bar.Volume,
		VolThresh:   ev.volThresh,
		TradeCount:  bar.TradeCount,
		MinTrades:   ev.params.MinTrades,
		Spread:      ev.spread,
		SpreadLimit: ev.params.SpreadLimit,
	})
	if q < 50 {
		if e.cfg.Stage2Debug {
			e.log.Debug("stage-1 quality below gate", "symbol", ev.symbol, "quality", q)
		}
		return
	}

	s.flag = &flagState{
		minute:      ev.minute,
		setupPrice:  bar.Close,
		setupVolume: bar.Volume,
		session:     ev.session,
		quality:     q,
	}

	if e.allowAlert(s, domain.StageSetup, ev.eventTS) {
		a := newAlert(ev, domain.StageSetup, q)
		a.SetupPrice = bar.Close
		e.emit(s, a)
	}
}

// ---------------------------------------------------------------------------
// Stage-2 confirmation
// ---------------------------------------------------------------------------

func (p *stagedProfile) stage2(e *Engine, s *symbolState, ev *evalContext) {
	bar := ev.bar
	flag := s.flag

	minutesSince := ev.eventTS.Sub(flag.minute).Minutes()
	expansion := (bar.Close - flag.setupPrice) / flag.setupPrice * 100
	cumVolume, cumTrades := s.cumSince(flag.minute, ev.minute)

	var required float64
	if minutesSince < 1.1 {
		required = 0.6
	} else {
		required = math.Max(0.6, ev.params.PctConfirm-ev.pctEarly+1.0)
	}

	if minutesSince > 4.0 && expansion < required/2 {
		if e.cfg.Stage2Debug {
			e.log.Debug("flag expired", "symbol", ev.symbol,
				"minutes_since", minutesSince, "expansion_pct", expansion)
		}
		s.flag = nil
		return
	}

	sustained := float64(cumVolume) >= 1.25*float64(flag.setupVolume) ||
		float64(bar.Volume) >= 0.55*float64(flag.setupVolume) ||
		float64(cumVolume) >= 0.5*ev.volThresh
	accel := ev.relVol >= ev.params.RelVolS2-0.4 ||
		float64(cumVolume)/ev.volThresh >= 0.55
	spreadOK := ev.spread == nil || *ev.spread < ev.params.SpreadLimit

	expansionOK := expansion >= required ||
		(minutesSince < 1.1 && bar.PctChange() >= ev.params.PctConfirm)
	tradeGate := cumTrades >= int64(math.Max(5, math.Ceil(float64(ev.params.MinTrades)*1.6)))

	path := domain.PathPrimary
	primary := expansionOK && sustained && accel && tradeGate && spreadOK
	if !primary {
		if e.cfg.Stage2Debug {
			e.log.Debug("stage-2 primary gates",
				"symbol", ev.symbol,
				"expansion", expansionOK, "sustained", sustained,
				"acceleration", accel, "trades", tradeGate, "spread", spreadOK)
		}
		if !p.altPath(s, ev, minutesSince, expansion) {
			return
		}
		path = domain.PathAlt
	}

	q := Score(ScoreInput{
		RelVol:          ev.relVol,
		PctChange:       bar.PctChange(),
		Volume:          bar.Volume,
		VolThresh:       ev.volThresh,
		TradeCount:      bar.TradeCount,
		MinTrades:       ev.params.MinTrades,
		Spread:          ev.spread,
		SpreadLimit:     ev.params.SpreadLimit,
		ExpansionPct:    expansion,
		Acceleration:    accel,
		VolumeSustained: sustained,
	})
	gate := 60.0
	if path == domain.PathAlt {
		gate = 58.0
	}
	if q < gate {
		if e.cfg.Stage2Debug {
			e.log.Debug("stage-2 quality below gate",
				"symbol", ev.symbol, "quality", q, "gate", gate, "path", string(path))
		}
		return
	}
	if !e.allowAlert(s, domain.StageConfirmed, ev.eventTS) {
		return
	}

	a := newAlert(ev, domain.StageConfirmed, q)
	a.Path = path
	a.SetupPrice = flag.setupPrice
	a.ExpansionPct = expansion
	a.CumVolume = cumVolume
	e.emit(s, a)

	s.flag = nil
	s.confirmedQuality = q
}

// altPath is the consolidation route: a 2-3 minute pause near the setup
// price on sustained volume, with expansion already past the early
// threshold.
func (p *stagedProfile) altPath(s *symbolState, ev *evalContext, minutesSince, expansion float64) bool {
	flag := s.flag
	if minutesSince < 2 || minutesSince > 3 {
		return false
	}
	if expansion < 0.4 || expansion < ev.pctEarly+1.0 {
		return false
	}
	if ev.bar.Close < flag.setupPrice*0.985 {
		return false
	}
	half := 0.5 * float64(flag.setupVolume)
	if float64(ev.bar.Volume) < half || ev.prevVol < 0 || float64(ev.prevVol) < half {
		return false
	}
	if ev.relVol < ev.params.RelVolS1+0.3 {
		return false
	}
	if ev.spread != nil && *ev.spread >= ev.params.SpreadLimit {
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Stage-3 fast-break
// ---------------------------------------------------------------------------

// stage3 fires on extreme single-bar moves regardless of flag state. It
// bypasses the cooldown window but still updates the tracker.
func (p *stagedProfile) stage3(e *Engine, s *symbolState, ev *evalContext) {
	bar := ev.bar
	if s.lastFastBreakMinute.Equal(ev.minute) {
		return
	}
	if ev.avgPrev3 <= 0 {
		return
	}
	if float64(bar.Volume) < 6*ev.avgPrev3 || bar.PctChange() < 9 {
		return
	}
	if ev.spread != nil && *ev.spread >= ev.params.SpreadLimit*1.6 {
		return
	}

	q := Score(ScoreInput{
		RelVol:          ev.relVol,
		PctChange:       bar.PctChange(),
		Volume:          bar.Volume,
		VolThresh:       ev.volThresh,
		TradeCount:      bar.TradeCount,
		MinTrades:       ev.params.MinTrades,
		Spread:          ev.spread,
		SpreadLimit:     ev.params.SpreadLimit,
		ExpansionPct:    bar.PctChange(),
		Acceleration:    true,
		VolumeSustained: true,
	})
	s.lastFastBreakMinute = ev.minute
	e.emit(s, newAlert(ev, domain.StageFastBreak, q))
}
