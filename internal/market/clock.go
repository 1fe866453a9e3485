// Package market provides Eastern-Time session awareness, watchlist
// loading, and per-symbol historical statistics.
package market

import (
	"time"

	"tapewatch/internal/domain"
)

// Clock maps event timestamps to Eastern-Time minutes and session labels.
type Clock struct {
	loc      *time.Location
	degraded bool
}

// NewClock loads the America/New_York zone. When the IANA database is not
// available it falls back to a fixed UTC-5 offset; callers must surface
// Degraded at startup because the fallback is wrong during DST.
func NewClock() *Clock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return &Clock{loc: time.FixedZone("ET", -5*3600), degraded: true}
	}
	return &Clock{loc: loc}
}

// Degraded reports whether the clock is running on the fixed-offset
// fallback instead of the DST-aware zone.
func (c *Clock) Degraded() bool { return c.degraded }

// Location returns the Eastern-Time location in use.
func (c *Clock) Location() *time.Location { return c.loc }

// Minute returns ts truncated to the minute in Eastern Time.
func (c *Clock) Minute(ts time.Time) time.Time {
	et := ts.In(c.loc)
	return time.Date(et.Year(), et.Month(), et.Day(), et.Hour(), et.Minute(), 0, 0, c.loc)
}

// Classify returns the Eastern-Time minute timestamp and the trading
// session the event falls into. Weekends classify as CLOSED.
func (c *Clock) Classify(ts time.Time) (time.Time, domain.Session) {
	minute := c.Minute(ts)

	if wd := minute.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return minute, domain.SessionClosed
	}

	hhmm := minute.Hour()*100 + minute.Minute()
	switch {
	case hhmm >= 400 && hhmm < 930:
		return minute, domain.SessionPremarket
	case hhmm >= 930 && hhmm < 1600:
		return minute, domain.SessionRegular
	case hhmm >= 1600 && hhmm < 2000:
		return minute, domain.SessionPostmarket
	default:
		return minute, domain.SessionClosed
	}
}

// NormalizeTimestamp converts an epoch value in nanoseconds, milliseconds,
// or seconds into a time.Time. Feeds disagree on units; the magnitude
// disambiguates.
func NormalizeTimestamp(raw int64) time.Time {
	switch {
	case raw > 1_000_000_000_000_000: // nanoseconds
		return time.Unix(0, raw)
	case raw > 1_000_000_000_000: // milliseconds
		return time.UnixMilli(raw)
	default: // seconds
		return time.Unix(raw, 0)
	}
}
