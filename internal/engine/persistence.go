package engine

import "tapewatch/internal/domain"

// persistenceProfile replaces the flag state machine with a multi-bar
// momentum counter: consecutive qualifying minutes build conviction,
// quiet minutes bleed it off.
type persistenceProfile struct{}

var _ profile = (*persistenceProfile)(nil)

func (p *persistenceProfile) name() string { return "persistence" }

// minPersistence adapts the counter requirement to liquidity: liquid names
// confirm on a single strong bar, thin names need three.
func (p *persistenceProfile) minPersistence(e *Engine, liquidity float64) int {
	if e.cfg.BacktestMode {
		return 1
	}
	switch {
	case liquidity >= 0.7:
		return 1
	case liquidity >= 0.3:
		return 2
	default:
		return 3
	}
}

func (p *persistenceProfile) evaluate(e *Engine, s *symbolState, ev *evalContext) {
	bar := ev.bar
	pct := bar.PctChange()

	pctEarly := ev.pctEarly
	if e.cfg.BacktestMode {
		pctEarly *= 0.65
	}

	// Provisional contribution of the in-progress minute; committed at the
	// boundary by commitMinute.
	s.curMinuteMet = ev.relVol >= 2.0 && pct >= pctEarly

	counter := s.momentum
	if s.curMinuteMet {
		counter++
	} else if counter > 0 {
		counter--
	}

	minPersist := p.minPersistence(e, ev.liquidity)
	if counter < minPersist {
		return
	}
	if s.vwapBias(2) == domain.BiasBearish && s.vwapBias(3) == domain.BiasBearish {
		return
	}
	if float64(bar.Volume) < ev.volThresh {
		return
	}
	if ev.spread != nil && *ev.spread >= ev.params.SpreadLimit {
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

	// Tiers: stronger persistence with higher quality upgrades the stage.
	var stage domain.Stage
	switch {
	case counter >= 3 && q >= 65:
		stage = domain.StageConfirmed
	case counter >= 2 && q >= 50:
		stage = domain.StageSetup
	case minPersist == 1 && q >= 50:
		stage = domain.StageSetup
	default:
		return
	}

	if !e.allowAlert(s, stage, ev.eventTS) {
		return
	}
	a := newAlert(ev, stage, q)
	if stage == domain.StageConfirmed {
		a.Path = domain.PathPrimary
		a.CumVolume = bar.Volume
		s.confirmedQuality = q
	}
	e.emit(s, a)
}
