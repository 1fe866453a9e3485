// Package backtest replays archived tapes through the detector, simulates
// forward outcomes for each alert, and aggregates results.
package backtest

import (
	"sync"

	"tapewatch/internal/domain"
)

// CaptureSink collects every alert the engine emits during a replay.
type CaptureSink struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func NewCaptureSink() *CaptureSink { return &CaptureSink{} }

func (c *CaptureSink) Send(a domain.Alert) bool {
	c.mu.Lock()
	c.alerts = append(c.alerts, a)
	c.mu.Unlock()
	return true
}

// Alerts returns the captured alerts in emission order.
func (c *CaptureSink) Alerts() []domain.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// Clear drops captured alerts between replay days or grid cells.
func (c *CaptureSink) Clear() {
	c.mu.Lock()
	c.alerts = nil
	c.mu.Unlock()
}
