package console

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	consoleLinesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ondeath_console_lines_total",
			Help: "Total console lines read from the server.",
		},
	)
	consoleDroppedLinesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ondeath_console_dropped_lines_total",
			Help: "Console lines dropped because a query buffer was full.",
		},
	)
	consoleQueuedTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ondeath_console_queued_timeouts_total",
			Help: "Queries that timed out waiting behind an identical command.",
		},
	)
	consoleQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ondeath_console_query_duration_seconds",
			Help:    "Duration of console queries by extraction mode.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)
)
