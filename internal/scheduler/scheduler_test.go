package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stop(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestSchedulerTicks(t *testing.T) {
	var runs atomic.Int32
	s := New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, Options{Name: "test", Interval: 5 * time.Millisecond})

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	stop(t, s)
	assert.False(t, s.Running())

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no ticks after stop")
}

func TestSchedulerStartTwiceIsNoop(t *testing.T) {
	var runs atomic.Int32
	s := New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, Options{Interval: time.Hour})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load())
	stop(t, s)
}

func TestSchedulerSkipsWhilePaused(t *testing.T) {
	var paused atomic.Bool
	paused.Store(true)
	var checks, runs atomic.Int32
	s := New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, Options{
		Interval: 2 * time.Millisecond,
		Paused: func() bool {
			checks.Add(1)
			return paused.Load()
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return checks.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Zero(t, runs.Load())

	paused.Store(false)
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)
	stop(t, s)
}

func TestSchedulerSkipsRecentRun(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var runs atomic.Int32
	var lookups atomic.Int32
	s := New(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, Options{
		Interval: time.Hour,
		Now:      func() time.Time { return now },
		LastRun: func(ctx context.Context) (time.Time, error) {
			lookups.Add(1)
			return now.Add(-10 * time.Minute), nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return lookups.Load() == 1 }, time.Second, time.Millisecond)
	stop(t, s)
	assert.Zero(t, runs.Load())
}

func TestSchedulerRunsWhenLastRunUnknown(t *testing.T) {
	var runs atomic.Int32
	s := New(func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("remote unavailable")
	}, Options{
		Interval: time.Hour,
		LastRun: func(ctx context.Context) (time.Time, error) {
			return time.Time{}, errors.New("store closed")
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	stop(t, s)
}

func TestStopDoesNotInterruptRunningTick(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var workCtxErr atomic.Value
	s := New(func(ctx context.Context) error {
		close(started)
		<-release
		workCtxErr.Store(ctx.Err() == nil)
		return nil
	}, Options{Interval: time.Hour})

	require.NoError(t, s.Start(context.Background()))
	<-started

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		stopped <- s.Stop(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)
	require.NoError(t, <-stopped)
	assert.Equal(t, true, workCtxErr.Load(), "work context is not cancelled by Stop")
}

func TestStartRequiresWork(t *testing.T) {
	assert.Error(t, New(nil, Options{}).Start(context.Background()))
}
