package correlator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondeath_correlator_cycles_total",
			Help: "Poll cycles by outcome (applied, rejected, fetch_error, dropped).",
		},
		[]string{"result"},
	)
	ticksSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondeath_correlator_ticks_skipped_total",
			Help: "Poll ticks that did not start a cycle, by reason.",
		},
		[]string{"reason"},
	)
	rejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondeath_correlator_rejected_snapshots_total",
			Help: "Snapshots rejected by validation, by failed check.",
		},
		[]string{"check"},
	)
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ondeath_correlator_events_total",
			Help: "Events derived by reconciliation.",
		},
		[]string{"event"},
	)
	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ondeath_correlator_fetch_duration_seconds",
			Help:    "Duration of the five concurrent snapshot fetches.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
	evictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ondeath_correlator_evicted_pawns_total",
			Help: "Pawns evicted from the cache after going idle.",
		},
	)
	pawnCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ondeath_correlator_pawn_cache_size",
			Help: "Number of tracked pawns.",
		},
	)
	killCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ondeath_correlator_kill_cache_size",
			Help: "Number of controllers with a cached kill count.",
		},
	)
)
