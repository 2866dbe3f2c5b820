package dedup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/thocc/newsrelay/internal/domain"
	"github.com/thocc/newsrelay/internal/pkg/metrics"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "dedup",
			Name:      "cache_hits_total",
			Help:      "Candidates rejected by the in-memory seen set",
		},
		[]string{"source"},
	)

	cacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "dedup",
			Name:      "cache_entries",
			Help:      "Names in the seen set for the current epoch",
		},
		[]string{"source"},
	)
)

func recordCacheHit(source domain.SourceID) {
	cacheHits.WithLabelValues(source.Tag()).Inc()
}
