package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/thocc/newsrelay/internal/pkg/metrics"
)

var (
	candidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ingest",
			Name:      "candidates_total",
			Help:      "Items produced by sources",
		},
		[]string{"source"},
	)

	newItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ingest",
			Name:      "new_items_total",
			Help:      "Items confirmed new by dedup",
		},
		[]string{"source"},
	)

	persistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ingest",
			Name:      "persist_failures_total",
			Help:      "New items that could not be stored",
		},
		[]string{"source"},
	)

	cycleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ingest",
			Name:      "cycle_failures_total",
			Help:      "Cycles aborted because the source could not be read",
		},
		[]string{"source"},
	)

	cycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ingest",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one ingest cycle",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"source"},
	)
)

func recordCandidate(source string)      { candidatesTotal.WithLabelValues(source).Inc() }
func recordNewItem(source string)        { newItemsTotal.WithLabelValues(source).Inc() }
func recordPersistFailure(source string) { persistFailures.WithLabelValues(source).Inc() }
func recordCycleFailure(source string)   { cycleFailures.WithLabelValues(source).Inc() }

func recordCycle(source string, d time.Duration) {
	cycleDuration.WithLabelValues(source).Observe(d.Seconds())
}
