package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapewatch_trades_total",
		Help: "Trades accepted into minute bars.",
	})
	quotesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapewatch_quotes_total",
		Help: "Quotes accepted into the quote book.",
	})
	skippedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapewatch_events_skipped_total",
		Help: "Events dropped before aggregation.",
	}, []string{"reason"})
	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapewatch_alerts_total",
		Help: "Alerts emitted by stage.",
	}, []string{"stage"})
)
