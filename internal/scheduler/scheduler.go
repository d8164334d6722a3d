// Package scheduler runs a sync operation periodically in the background.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wesm/pr-watch/internal/log"
)

const defaultInterval = 5 * time.Minute

// Work is the unit of work run on every tick
type Work func(ctx context.Context) error

// Options configures a Scheduler. Only Interval has a default.
type Options struct {
	// Name identifies the scheduler in logs.
	Name     string
	Interval time.Duration
	// Paused, when set and returning true, skips the tick.
	Paused func() bool
	// LastRun reports when the work last completed, possibly from an earlier
	// process. A tick is skipped when that is less than Interval ago.
	LastRun func(ctx context.Context) (time.Time, error)
	Now     func() time.Time
}

// Scheduler invokes Work on a fixed interval until stopped. A tick that is
// already running is never interrupted by Stop.
type Scheduler struct {
	work     Work
	name     string
	interval time.Duration
	paused   func() bool
	lastRun  func(ctx context.Context) (time.Time, error)
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New returns a stopped scheduler for work. Call Start to begin ticking.
func New(work Work, opts Options) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		work:     work,
		name:     opts.Name,
		interval: interval,
		paused:   opts.Paused,
		lastRun:  opts.LastRun,
		now:      now,
	}
}

// Start begins ticking. The first tick runs immediately. Starting a running
// scheduler is a no-op.
func (s *Scheduler) Start(parent context.Context) error {
	if s == nil || s.work == nil {
		return fmt.Errorf("scheduler is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.started = true

	go s.run(ctx, done)
	return nil
}

// Stop cancels the wait for the next tick and waits for a running tick to
// finish, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.started = false
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	return nil
}

// Running reports whether the scheduler has been started and not stopped
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Scheduler) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ctx = log.WithFields(ctx, log.Fields{"scheduler": s.name})

	for {
		if ctx.Err() != nil {
			return
		}
		s.tick(ctx)
		if !sleepOrDone(ctx, s.interval) {
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.paused != nil && s.paused() {
		log.Debug(ctx, "Scheduler paused, skipping tick")
		return
	}

	if s.lastRun != nil {
		last, err := s.lastRun(ctx)
		if err != nil {
			log.Warn(ctx, "Failed to read last run time", "error", err)
		} else if !last.IsZero() && s.now().Sub(last) < s.interval {
			log.Debug(ctx, "Ran recently, skipping tick", "last_run", last)
			return
		}
	}

	// The tick runs to completion even if the scheduler is stopped meanwhile.
	if err := s.work(context.WithoutCancel(ctx)); err != nil {
		log.Warn(ctx, "Scheduled work failed", "error", err)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
