package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/thocc/newsrelay/internal/pkg/metrics"
)

var (
	retryQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "retry_queue_size",
			Help:      "Jobs waiting for a retry attempt",
		},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Delivery attempts by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	notificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "send_duration_seconds",
			Help:      "Time to deliver one notification",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	fallbacksSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "notifications",
			Name:      "fallback_total",
			Help:      "Plain-text fallback sends by result",
		},
		[]string{"result"},
	)
)

func recordAttempt(mode DeliveryMode, outcome Outcome, duration time.Duration) {
	notificationsSent.WithLabelValues(string(mode), outcome.String()).Inc()
	notificationSendDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())
}

func recordFallback(err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	fallbacksSent.WithLabelValues(result).Inc()
}
