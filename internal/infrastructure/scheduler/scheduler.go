package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iller75/BybitMover/internal/usecase"
)

// DefaultTick is how often the loop checks whether a cycle is due.
const DefaultTick = time.Second

// CycleRunner runs one sweep cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) usecase.CycleReport
}

// Config for Scheduler.
type Config struct {
	Runner   CycleRunner
	Interval time.Duration
	Tick     time.Duration    // Polling granularity, defaults to DefaultTick
	Now      func() time.Time // Clock, defaults to time.Now
	Logger   zerolog.Logger
}

// Scheduler drives cycles at a fixed interval from a single goroutine.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	tick     time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Tick == 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Scheduler{
		runner:   cfg.Runner,
		interval: cfg.Interval,
		tick:     cfg.Tick,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
}

// Start runs until ctx is cancelled. The first cycle fires one interval after
// start. A cycle in progress when ctx is cancelled runs to completion on a
// context that is not cancelled, so no transfer is abandoned half way.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("scheduler started")

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	next := s.now().Add(s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler shutting down")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			if s.now().Before(next) {
				continue
			}

			s.runner.RunCycle(context.WithoutCancel(ctx))

			// An overrun fires once on the next tick rather than replaying
			// every missed slot.
			finished := s.now()
			next = next.Add(s.interval)
			if !next.After(finished) {
				s.logger.Warn().
					Dur("interval", s.interval).
					Msg("cycle overran its interval")
				next = finished
			}

			s.logger.Debug().Time("next_run", next).Msg("next cycle scheduled")
		}
	}
}
