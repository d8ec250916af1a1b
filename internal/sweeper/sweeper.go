// Package sweeper periodically marks past, unfinished events as missed.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// runTimeout bounds a single sweep.
const runTimeout = time.Minute

// MissedSweeper is satisfied by *schedule.Service.
type MissedSweeper interface {
	SweepMissed(ctx context.Context, now time.Time, grace time.Duration) (int, error)
}

// Sweeper runs a MissedSweeper on a cron schedule.
type Sweeper struct {
	mu     sync.Mutex
	target MissedSweeper
	spec   string
	grace  time.Duration
	logger *slog.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// New creates a sweeper. An empty spec disables it: Start becomes a no-op.
func New(target MissedSweeper, spec string, grace time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		target: target,
		spec:   spec,
		grace:  grace,
		logger: logger,
		now:    time.Now,
	}
}

// Start validates the schedule and begins running sweeps in the background.
func (s *Sweeper) Start() error {
	if s.spec == "" {
		s.logger.Info("missed-event sweeper disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.Run(context.Background()) }); err != nil {
		return fmt.Errorf("add sweep job %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("missed-event sweeper started", "schedule", s.spec, "grace", s.grace)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("missed-event sweeper stopped")
}

// Run performs one sweep and returns how many events were marked missed.
func (s *Sweeper) Run(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	n, err := s.target.SweepMissed(ctx, s.now(), s.grace)
	if err != nil {
		s.logger.Error("sweep missed events", "error", err)
		return n
	}
	if n > 0 {
		s.logger.Info("marked events missed", "count", n)
	}
	return n
}
