package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordDBPoolMetrics updates database pool metrics.
func RecordDBPoolMetrics(pool *pgxpool.Pool) {
	stats := pool.Stat()

	DBPoolConnections.WithLabelValues("in_use").Set(float64(stats.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stats.MaxConns()))
}

// PoolCollector samples pool statistics on an interval. It implements
// Serve so a supervisor can run it.
type PoolCollector struct {
	Pool     *pgxpool.Pool
	Interval time.Duration
}

// Serve records pool metrics until ctx is done.
func (c PoolCollector) Serve(ctx context.Context) error {
	interval := c.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	RecordDBPoolMetrics(c.Pool)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			RecordDBPoolMetrics(c.Pool)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c PoolCollector) String() string {
	return "db-pool-collector"
}
