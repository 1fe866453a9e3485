package engine

import (
	"time"

	"tapewatch/internal/domain"
)

// barRetention is how many minute bars are kept per symbol. Detection looks
// back at most 5 minutes; a little headroom keeps snapshots useful.
const barRetention = 8

// flagState records an armed Stage-1 setup awaiting confirmation.
type flagState struct {
	minute      time.Time
	setupPrice  float64
	setupVolume int64
	session     domain.Session
	quality     float64
}

// likeFlagState is the likelihood profile's pending-setup record.
type likeFlagState struct {
	minute time.Time
	price  float64
	volume int64
}

// symbolState is all mutable detection state for one symbol. Guarded by
// Engine.mu.
type symbolState struct {
	bars        []*domain.Bar // ascending minutes, at most barRetention
	rolling     []int64       // up to 3 completed minute volumes, oldest first
	lastEventTS time.Time

	flag *flagState

	// Persistence profile: momentum counter committed through the last
	// completed minute, plus the current minute's provisional contribution.
	momentum     int
	curMinuteMet bool

	// Likelihood profile.
	likelihood     float64 // current minute's latest value
	prevLikelihood float64 // committed value of the previous minute
	likeFlag       *likeFlagState

	// Cooldown trackers.
	lastAlert      time.Time
	lastAlertStage domain.Stage
	lastWatchAlert time.Time

	// Watch alerts are appended to the engine watch list once per minute;
	// fast-breaks are likewise deduped per minute since they skip cooldown.
	lastWatchMinute     time.Time
	lastFastBreakMinute time.Time

	confirmedQuality float64
}

func (e *Engine) state(symbol string) *symbolState {
	s, ok := e.symbols[symbol]
	if !ok {
		s = &symbolState{}
		e.symbols[symbol] = s
	}
	return s
}

// current returns the bar for the given minute, or nil if the state has not
// advanced to it yet.
func (s *symbolState) current(minute time.Time) *domain.Bar {
	if n := len(s.bars); n > 0 && s.bars[n-1].Timestamp.Equal(minute) {
		return s.bars[n-1]
	}
	return nil
}

// advance moves the symbol to the given minute, creating an empty current
// bar if needed. Crossing a minute boundary shifts the rolling volume
// window exactly once: the newly completed bar's volume enters, the oldest
// entry leaves once three are held.
func (e *Engine) advance(s *symbolState, symbol string, minute time.Time) *domain.Bar {
	if bar := s.current(minute); bar != nil {
		return bar
	}

	if n := len(s.bars); n > 0 {
		completed := s.bars[n-1]
		s.rolling = append(s.rolling, completed.Volume)
		if len(s.rolling) > 3 {
			s.rolling = s.rolling[1:]
		}
		s.commitMinute(e)
	}

	bar := &domain.Bar{Symbol: symbol, Timestamp: minute}
	s.bars = append(s.bars, bar)
	if len(s.bars) > barRetention {
		s.bars = s.bars[1:]
	}
	return bar
}

// commitMinute folds the finished minute's provisional profile state into
// the committed counters.
func (s *symbolState) commitMinute(e *Engine) {
	if s.curMinuteMet {
		s.momentum++
	} else if s.momentum > 0 {
		s.momentum--
	}
	s.curMinuteMet = false

	s.prevLikelihood = s.likelihood
	s.likelihood = 0
}

// rollingAvg is the mean of the held completed-minute volumes, 0 when empty.
func (s *symbolState) rollingAvg() float64 {
	if len(s.rolling) == 0 {
		return 0
	}
	var sum int64
	for _, v := range s.rolling {
		sum += v
	}
	return float64(sum) / float64(len(s.rolling))
}

// prevMinuteVolume is the most recent completed minute's volume, -1 when no
// minute has completed yet.
func (s *symbolState) prevMinuteVolume() int64 {
	if len(s.rolling) == 0 {
		return -1
	}
	return s.rolling[len(s.rolling)-1]
}

// barsSince returns the held bars with timestamps in [from, through],
// ascending.
func (s *symbolState) barsSince(from, through time.Time) []*domain.Bar {
	var out []*domain.Bar
	for _, b := range s.bars {
		if b.Timestamp.Before(from) || b.Timestamp.After(through) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// cumSince sums volume and trade count across bars from the flag minute
// through the current minute, inclusive of both.
func (s *symbolState) cumSince(from, through time.Time) (volume, trades int64) {
	for _, b := range s.barsSince(from, through) {
		volume += b.Volume
		trades += b.TradeCount
	}
	return volume, trades
}

// lastBars returns up to n most recent bars ending at the current minute,
// ascending.
func (s *symbolState) lastBars(n int) []*domain.Bar {
	if len(s.bars) <= n {
		return s.bars
	}
	return s.bars[len(s.bars)-n:]
}

// vwapBias classifies the close-versus-VWAP relationship over the last n
// bars: every close above its bar VWAP is bullish, every close below is
// bearish, anything mixed is neutral. Fewer than n bars is neutral.
func (s *symbolState) vwapBias(n int) domain.Bias {
	bars := s.lastBars(n)
	if len(bars) < n {
		return domain.BiasNeutral
	}
	above, below := 0, 0
	for _, b := range bars {
		if b.VWAP <= 0 {
			return domain.BiasNeutral
		}
		switch {
		case b.Close > b.VWAP:
			above++
		case b.Close < b.VWAP:
			below++
		}
	}
	switch {
	case above == len(bars):
		return domain.BiasBullish
	case below == len(bars):
		return domain.BiasBearish
	default:
		return domain.BiasNeutral
	}
}
