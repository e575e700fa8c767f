package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// countingSyncer records calls and reports each one on a channel.
type countingSyncer struct {
	calls   atomic.Int32
	ticks   chan struct{}
	outcome SyncOutcome
	panics  bool
}

func newCountingSyncer() *countingSyncer {
	return &countingSyncer{ticks: make(chan struct{}, 16)}
}

func (c *countingSyncer) Sync(context.Context) SyncOutcome {
	c.calls.Add(1)

	select {
	case c.ticks <- struct{}{}:
	default:
	}

	if c.panics {
		panic("sync exploded")
	}

	return c.outcome
}

func waitTicks(t *testing.T, c *countingSyncer, n int) {
	t.Helper()

	for i := range n {
		select {
		case <-c.ticks:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for sync %d", i+1)
		}
	}
}

func TestNewSyncScheduler_Defaults(t *testing.T) {
	s := NewSyncScheduler(newCountingSyncer(), SchedulerConfig{})

	assert.Equal(t, DefaultSyncInitialDelay, s.initialDelay)
	assert.Equal(t, DefaultSyncInterval, s.interval)
}

func TestSyncScheduler_RunsRepeatedly(t *testing.T) {
	defer goleak.VerifyNone(t)

	syncer := newCountingSyncer()
	s := NewSyncScheduler(syncer, SchedulerConfig{
		InitialDelay: 5 * time.Millisecond,
		Interval:     5 * time.Millisecond,
		Logger:       discardLogger(),
	})

	require.NoError(t, s.Start(context.Background()))
	waitTicks(t, syncer, 3)
	s.Stop()

	assert.GreaterOrEqual(t, syncer.calls.Load(), int32(3))
}

func TestSyncScheduler_InitialDelay(t *testing.T) {
	defer goleak.VerifyNone(t)

	syncer := newCountingSyncer()
	s := NewSyncScheduler(syncer, SchedulerConfig{
		InitialDelay: time.Hour,
		Interval:     time.Millisecond,
		Logger:       discardLogger(),
	})

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	assert.Zero(t, syncer.calls.Load())
}

func TestSyncScheduler_SurvivesFailuresAndPanics(t *testing.T) {
	tests := []struct {
		name   string
		syncer *countingSyncer
	}{
		{name: "failed outcome", syncer: &countingSyncer{outcome: SyncOutcome{Failed: true, Reason: "offline"}}},
		{name: "panic", syncer: &countingSyncer{panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			tt.syncer.ticks = make(chan struct{}, 16)
			s := NewSyncScheduler(tt.syncer, SchedulerConfig{
				InitialDelay: time.Millisecond,
				Interval:     time.Millisecond,
				Logger:       discardLogger(),
			})

			require.NoError(t, s.Start(context.Background()))
			waitTicks(t, tt.syncer, 2)
			s.Stop()
		})
	}
}

func TestSyncScheduler_StartTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSyncScheduler(newCountingSyncer(), SchedulerConfig{InitialDelay: time.Hour, Logger: discardLogger()})

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrSchedulerRunning)

	s.Stop()
	s.Stop()

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestSyncScheduler_ContextCancelEndsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSyncScheduler(newCountingSyncer(), SchedulerConfig{InitialDelay: time.Hour, Logger: discardLogger()})

	require.NoError(t, s.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}

func TestStore_ImplementsSyncer(t *testing.T) {
	var _ Syncer = (*Store)(nil)
}
