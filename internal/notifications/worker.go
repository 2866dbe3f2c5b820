package notifications

import (
	"context"
	"log/slog"
	"time"
)

// Worker drains the retry queue on a fixed poll interval.
type Worker struct {
	dispatcher   *Dispatcher
	pollInterval time.Duration
}

// NewWorker creates a drain worker.
func NewWorker(dispatcher *Dispatcher, pollInterval time.Duration) *Worker {
	return &Worker{
		dispatcher:   dispatcher,
		pollInterval: pollInterval,
	}
}

// Serve runs drain passes until ctx is done.
func (w *Worker) Serve(ctx context.Context) error {
	slog.Info("starting retry worker",
		"poll_interval", w.pollInterval,
		"retry_interval", w.dispatcher.policy.RetryInterval,
		"max_attempts", w.dispatcher.policy.MaxAttempts,
	)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retry worker stopped", "pending", w.dispatcher.queue.Len())
			return ctx.Err()
		case <-ticker.C:
			w.DrainOnce(ctx)
		}
	}
}

func (w *Worker) String() string {
	return "notifications-retry-worker"
}

// DrainOnce takes every queued job, puts back those not yet eligible and
// retries the rest. It returns the number of jobs retried.
func (w *Worker) DrainOnce(ctx context.Context) int {
	d := w.dispatcher
	jobs := d.queue.Drain()
	if len(jobs) == 0 {
		return 0
	}

	now := d.now()
	retried := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			d.queue.Enqueue(job)
			continue
		}
		if !job.Eligible(now, d.policy.RetryInterval) {
			d.queue.Enqueue(job)
			continue
		}
		w.retry(ctx, job)
		retried++
	}

	slog.Debug("drain pass finished", "drained", len(jobs), "retried", retried, "pending", d.queue.Len())
	return retried
}

func (w *Worker) retry(ctx context.Context, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while retrying notification", "job_id", job.ID, "panic", r)
		}
	}()
	w.dispatcher.Retry(ctx, job)
}
