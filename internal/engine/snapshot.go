package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"tapewatch/internal/domain"
)

const snapshotMinuteFormat = "2006-01-02T15:04"

// snapshotBar is the on-disk bar shape: {minute: {symbol: bar}}.
type snapshotBar struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	Value  float64 `json:"value"`
	Count  int64   `json:"count"`
	VWAP   float64 `json:"vwap"`
}

// SaveSnapshot writes the retained minute bars as JSON, atomically via a
// temp file rename.
func (e *Engine) SaveSnapshot(path string) error {
	e.mu.Lock()
	out := make(map[string]map[string]snapshotBar)
	for sym, s := range e.symbols {
		for _, b := range s.bars {
			key := b.Timestamp.Format(snapshotMinuteFormat)
			m, ok := out[key]
			if !ok {
				m = make(map[string]snapshotBar)
				out[key] = m
			}
			m[sym] = snapshotBar{
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
				Value:  b.Value,
				Count:  b.TradeCount,
				VWAP:   b.VWAP,
			}
		}
	}
	e.mu.Unlock()

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores bar state from a prior SaveSnapshot. A missing file
// is a clean start. An unreadable file is renamed aside with a .corrupt
// suffix and the engine starts fresh; restore never fails the process.
func (e *Engine) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading snapshot %s: %w", path, err)
	}

	var raw map[string]map[string]snapshotBar
	if err := json.Unmarshal(data, &raw); err != nil {
		quarantine := path + ".corrupt"
		if renameErr := os.Rename(path, quarantine); renameErr != nil {
			e.log.Warn("could not quarantine corrupt snapshot", "path", path, "err", renameErr)
		} else {
			e.log.Warn("corrupt snapshot moved aside", "path", quarantine, "err", err)
		}
		return nil
	}

	type dated struct {
		minute time.Time
		bar    domain.Bar
	}
	bySymbol := make(map[string][]dated)
	for key, symbols := range raw {
		minute, err := time.ParseInLocation(snapshotMinuteFormat, key, e.clock.Location())
		if err != nil {
			continue
		}
		for sym, sb := range symbols {
			bySymbol[sym] = append(bySymbol[sym], dated{
				minute: minute,
				bar: domain.Bar{
					Symbol:     sym,
					Timestamp:  minute,
					Open:       sb.Open,
					High:       sb.High,
					Low:        sb.Low,
					Close:      sb.Close,
					Volume:     sb.Volume,
					Value:      sb.Value,
					TradeCount: sb.Count,
					VWAP:       sb.VWAP,
				},
			})
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for sym, entries := range bySymbol {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].minute.Before(entries[j].minute)
		})
		s := e.state(sym)
		// Sequential install rebuilds the rolling windows exactly as the
		// live path would have.
		for _, entry := range entries {
			bar := e.advance(s, sym, entry.minute)
			*bar = entry.bar
			s.lastEventTS = entry.minute
		}
	}
	e.log.Info("snapshot restored", "path", path, "symbols", len(bySymbol))
	return nil
}
