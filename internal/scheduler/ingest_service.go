package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/thocc/newsrelay/internal/ingest"
)

// Cycle runs one ingest pass. *ingest.Pipeline implements it.
type Cycle interface {
	Name() string
	RunOnce(ctx context.Context) (ingest.Result, error)
}

// IngestService repeats a cycle forever with a fixed pause between passes.
// A failed or panicking pass is logged and the loop carries on.
type IngestService struct {
	cycle    Cycle
	interval time.Duration
}

// NewIngestService creates a loop for cycle.
func NewIngestService(cycle Cycle, interval time.Duration) *IngestService {
	return &IngestService{cycle: cycle, interval: interval}
}

// Serve implements suture.Service.
func (s *IngestService) Serve(ctx context.Context) error {
	slog.Info("starting ingest loop", "source", s.cycle.Name(), "interval", s.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ingest loop stopped", "source", s.cycle.Name())
			return ctx.Err()
		case <-timer.C:
		}

		s.runCycle(ctx)
		timer.Reset(s.interval)
	}
}

func (s *IngestService) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in ingest cycle", "source", s.cycle.Name(), "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if _, err := s.cycle.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("ingest cycle failed", "source", s.cycle.Name(), "error", err, "next_in", s.interval)
	}
}

func (s *IngestService) String() string {
	return "ingest-" + s.cycle.Name()
}
