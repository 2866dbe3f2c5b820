package translate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/thocc/newsrelay/internal/pkg/metrics"
)

var translations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "translate",
		Name:      "requests_total",
		Help:      "Translation calls by result (translated, failed, skipped)",
	},
	[]string{"result"},
)

func recordTranslation(result string) {
	translations.WithLabelValues(result).Inc()
}
