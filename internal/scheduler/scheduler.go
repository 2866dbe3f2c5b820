// Package scheduler runs the long-lived loops of the service under a
// supervisor tree: one ingest loop per source, the retry drain loop and
// background collectors.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Config holds supervisor settings.
type Config struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay    float64
	FailureBackoff  time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns suture's default failure handling with a 10s stop
// timeout.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Scheduler is the root supervisor. Ingest loops and delivery loops live in
// separate child supervisors so a crashing source cannot stall retries.
type Scheduler struct {
	root     *suture.Supervisor
	ingest   *suture.Supervisor
	delivery *suture.Supervisor
}

// New builds the supervisor tree. Zero config fields take defaults.
func New(logger *slog.Logger, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = (&sutureslog.Handler{Logger: logger}).MustHook()

	s := &Scheduler{
		root:     suture.New("newsrelay", rootSpec),
		ingest:   suture.New("ingest", spec),
		delivery: suture.New("delivery", spec),
	}
	s.root.Add(s.ingest)
	s.root.Add(s.delivery)
	return s
}

// AddIngest adds a source loop.
func (s *Scheduler) AddIngest(svc suture.Service) suture.ServiceToken {
	return s.ingest.Add(svc)
}

// AddDelivery adds a delivery-side loop such as the retry worker.
func (s *Scheduler) AddDelivery(svc suture.Service) suture.ServiceToken {
	return s.delivery.Add(svc)
}

// Add adds a service directly under the root.
func (s *Scheduler) Add(svc suture.Service) suture.ServiceToken {
	return s.root.Add(svc)
}

// Serve runs the tree until ctx is done.
func (s *Scheduler) Serve(ctx context.Context) error {
	return s.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The channel receives the
// result when the tree stops.
func (s *Scheduler) ServeBackground(ctx context.Context) <-chan error {
	return s.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that did not stop within the
// shutdown timeout.
func (s *Scheduler) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return s.root.UnstoppedServiceReport()
}
