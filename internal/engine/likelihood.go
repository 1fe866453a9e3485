package engine

import (
	"math"

	"tapewatch/internal/domain"
)

// likelihoodProfile tracks a weighted momentum likelihood in [0,1] per
// symbol and arms on rising likelihood rather than a single-bar spike.
// Pending setups auto-cancel on fade.
type likelihoodProfile struct{}

var _ profile = (*likelihoodProfile)(nil)

func (p *likelihoodProfile) name() string { return "likelihood" }

// likelihood blends relative volume, percent move, VWAP bias, spread
// tightness, and liquidity into one score.
func (p *likelihoodProfile) likelihood(s *symbolState, ev *evalContext) float64 {
	l := 0.40 * math.Min(ev.relVol/3, 1)

	pct := ev.bar.PctChange()
	if pct > 0 && ev.pctEarly > 0 {
		l += 0.30 * math.Min(pct/ev.pctEarly, 1)
	}

	switch s.vwapBias(3) {
	case domain.BiasBullish:
		l += 0.15
	case domain.BiasNeutral:
		l += 0.15 * 0.5
	}

	tight := 0.5
	if ev.spread != nil && ev.params.SpreadLimit > 0 {
		tight = math.Max(0, (ev.params.SpreadLimit-*ev.spread)/ev.params.SpreadLimit)
	}
	l += 0.10 * tight

	l += 0.05 * ev.liquidity

	return math.Min(l, 1)
}

func (p *likelihoodProfile) evaluate(e *Engine, s *symbolState, ev *evalContext) {
	bar := ev.bar
	l := p.likelihood(s, ev)
	s.likelihood = l

	if s.likeFlag == nil {
		// Arm on high and rising likelihood.
		if l >= 0.75 && l-s.prevLikelihood > 0 {
			s.likeFlag = &likeFlagState{
				minute: ev.minute,
				price:  bar.Close,
				volume: bar.Volume,
			}
			if e.allowAlert(s, domain.StageSetup, ev.eventTS) {
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
				a := newAlert(ev, domain.StageSetup, q)
				a.SetupPrice = bar.Close
				e.emit(s, a)
			}
		}
		return
	}

	flag := s.likeFlag
	minutesSince := ev.eventTS.Sub(flag.minute).Minutes()
	followThrough := (bar.Close - flag.price) / flag.price * 100

	if followThrough < -1 || l < 0.4 || minutesSince > 5 {
		if e.cfg.Stage2Debug {
			e.log.Debug("pending setup cancelled", "symbol", ev.symbol,
				"follow_through", followThrough, "likelihood", l,
				"minutes_since", minutesSince)
		}
		s.likeFlag = nil
		return
	}

	if minutesSince < 2 {
		return
	}

	cumVolume, _ := s.cumSince(flag.minute, ev.minute)
	sustained := float64(cumVolume) >= 1.25*float64(flag.volume) ||
		float64(bar.Volume) >= 0.55*float64(flag.volume)
	if followThrough < 2.0 || !sustained {
		return
	}
	if bar.VWAP <= 0 || bar.Close <= bar.VWAP {
		return
	}
	if s.vwapBias(3) == domain.BiasBearish {
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
		ExpansionPct:    followThrough,
		Acceleration:    l > s.prevLikelihood,
		VolumeSustained: sustained,
	})
	if q < 50 {
		return
	}
	if !e.allowAlert(s, domain.StageConfirmed, ev.eventTS) {
		return
	}

	a := newAlert(ev, domain.StageConfirmed, q)
	a.Path = domain.PathPrimary
	a.SetupPrice = flag.price
	a.ExpansionPct = followThrough
	a.CumVolume = cumVolume
	e.emit(s, a)

	s.likeFlag = nil
	s.confirmedQuality = q
}
