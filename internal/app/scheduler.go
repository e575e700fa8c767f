package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultSyncInterval     = time.Minute
	DefaultSyncInitialDelay = 2 * time.Second
)

// ErrSchedulerRunning is returned by Start on a scheduler that is already running.
var ErrSchedulerRunning = errors.New("sync scheduler already running")

// Syncer is what the scheduler triggers. *Store implements it.
type Syncer interface {
	Sync(ctx context.Context) SyncOutcome
}

// SchedulerConfig configures a SyncScheduler.
type SchedulerConfig struct {
	// InitialDelay is the wait before the first sync. Defaults to DefaultSyncInitialDelay.
	InitialDelay time.Duration

	// Interval is the period between syncs. Defaults to DefaultSyncInterval.
	Interval time.Duration

	Logger *slog.Logger
}

// SyncScheduler triggers a sync once after a short delay and then on a fixed
// interval until stopped. Outcomes are logged; a failed sync never stops it.
type SyncScheduler struct {
	syncer       Syncer
	initialDelay time.Duration
	interval     time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSyncScheduler creates a stopped scheduler for syncer.
func NewSyncScheduler(syncer Syncer, cfg SchedulerConfig) *SyncScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultSyncInitialDelay
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSyncInterval
	}

	return &SyncScheduler{
		syncer:       syncer,
		initialDelay: cfg.InitialDelay,
		interval:     cfg.Interval,
		logger:       logger.With(slog.String("component", "app.SyncScheduler")),
	}
}

// Start launches the loop. It returns immediately; the loop ends when ctx is
// canceled or Stop is called.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return ErrSchedulerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.InfoContext(ctx, "sync scheduler started",
		slog.Duration("initial_delay", s.initialDelay),
		slog.Duration("interval", s.interval),
	)

	return nil
}

// Stop cancels the loop and waits for it to exit. The loop stops waiting on a
// sync in progress; the attempt itself runs to completion. Stop on a stopped
// scheduler is a no-op.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}

	cancel()
	<-done

	s.logger.Info("sync scheduler stopped")
}

func (s *SyncScheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.runOnce(ctx)
		timer.Reset(s.interval)
	}
}

func (s *SyncScheduler) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "scheduled sync panicked", slog.Any("panic", r))
		}
	}()

	outcome := s.syncer.Sync(ctx)
	if outcome.Failed {
		s.logger.WarnContext(ctx, "scheduled sync failed", slog.String("reason", outcome.Reason))
		return
	}

	s.logger.DebugContext(ctx, "scheduled sync finished",
		slog.Int("added", outcome.Added),
		slog.Int("updated", outcome.Updated),
		slog.Int("conflicts", outcome.Conflicts),
	)
}
