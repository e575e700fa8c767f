package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quoteboard/internal/domain"
	"github.com/jsamuelsen/quoteboard/internal/ports"
)

// SyncPhase is the step a sync attempt is in.
type SyncPhase int32

const (
	PhaseIdle SyncPhase = iota
	PhaseFetching
	PhaseMerging
	PhasePersisting
	PhaseNotifying
)

var phaseNames = [...]string{"idle", "fetching", "merging", "persisting", "notifying"}

// String returns the lower-case phase name.
func (p SyncPhase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int32(p))
	}

	return phaseNames[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p SyncPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

type phaseTracker struct {
	v atomic.Int32
}

func (t *phaseTracker) set(p SyncPhase) { t.v.Store(int32(p)) }
func (t *phaseTracker) get() SyncPhase  { return SyncPhase(t.v.Load()) }

// SyncOutcome is the result of one sync attempt.
// Sync never returns an error; a failed attempt sets Failed and Reason.
type SyncOutcome struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Conflicts int `json:"conflicts"`

	// At is when the attempt started. Remote quotes and the notice are
	// stamped with it; LastSyncAt records when the attempt completed.
	At time.Time `json:"at"`

	Failed bool   `json:"failed"`
	Reason string `json:"reason,omitempty"`
}

// SyncStatus is a point-in-time view of the sync engine.
type SyncStatus struct {
	Phase       SyncPhase
	LastSyncAt  time.Time
	LastOutcome *SyncOutcome
}

// Sync reconciles the collection with a snapshot from the remote source.
//
// Concurrent calls share one attempt: a caller arriving while a sync is in
// flight waits for it and receives the same outcome. The attempt runs detached
// from the caller's cancellation, so a caller that goes away does not abort it
// for the others. A caller whose ctx ends first gets a failed outcome while
// the attempt carries on.
func (s *Store) Sync(ctx context.Context) SyncOutcome {
	ch := s.flight.DoChan("sync", func() (any, error) {
		return s.runSync(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.loggerFor(ctx).DebugContext(ctx, "joined in-flight sync")
		}

		return res.Val.(SyncOutcome)

	case <-ctx.Done():
		return SyncOutcome{
			At:     s.now().UTC(),
			Failed: true,
			Reason: fmt.Sprintf("waiting for sync: %v", ctx.Err()),
		}
	}
}

func (s *Store) runSync(ctx context.Context) SyncOutcome {
	logger := s.loggerFor(ctx).With(slog.String("method", "Sync"))

	ctx, span := s.tracer.Start(ctx, "quotes.sync", trace.WithAttributes(
		attribute.Int("quotes.snapshot_size", s.snapshotSize),
	))
	defer span.End()

	defer s.phase.set(PhaseIdle)

	at := s.now().UTC()

	s.phase.set(PhaseFetching)

	records, err := s.remote.FetchSnapshot(ctx, s.snapshotSize)
	if err != nil {
		return s.fail(ctx, span, logger, at, "fetching remote snapshot", err)
	}

	s.phase.set(PhaseMerging)

	s.mu.Lock()

	merged, result := domain.Merge(s.quotes, domain.FromRemote(records, at))

	s.phase.set(PhasePersisting)

	if err := s.persistLocked(ctx, merged); err != nil {
		s.mu.Unlock()
		return s.fail(ctx, span, logger, at, "persisting merge", err)
	}

	s.quotes = merged
	s.mu.Unlock()

	s.phase.set(PhaseNotifying)

	notice := ports.SyncNotice{Count: result.Changed(), Timestamp: at}
	if err := s.remote.Notify(ctx, notice); err != nil {
		logger.WarnContext(ctx, "sync notification failed", slog.Any("error", err))
	}

	completed := s.now().UTC()

	if err := s.durable.Set(ctx, ports.KeyLastSyncAt, completed.Format(time.RFC3339Nano)); err != nil {
		logger.WarnContext(ctx, "failed to record last sync time", slog.Any("error", err))
	}

	outcome := SyncOutcome{
		Added:     result.Added,
		Updated:   result.Updated,
		Conflicts: result.Conflicts,
		At:        at,
	}

	s.mu.Lock()
	s.lastSyncAt = completed
	s.lastOutcome = &outcome
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Int("quotes.added", outcome.Added),
		attribute.Int("quotes.updated", outcome.Updated),
		attribute.Int("quotes.conflicts", outcome.Conflicts),
	)
	s.metrics.recordSuccess(ctx, result)

	logger.InfoContext(ctx, "sync completed",
		slog.Int("fetched", len(records)),
		slog.Int("added", outcome.Added),
		slog.Int("updated", outcome.Updated),
		slog.Int("conflicts", outcome.Conflicts),
	)

	return outcome
}

func (s *Store) fail(
	ctx context.Context,
	span trace.Span,
	logger *slog.Logger,
	at time.Time,
	step string,
	err error,
) SyncOutcome {
	outcome := SyncOutcome{
		At:     at,
		Failed: true,
		Reason: fmt.Sprintf("%s: %v", step, err),
	}

	s.mu.Lock()
	s.lastOutcome = &outcome
	s.mu.Unlock()

	span.RecordError(err)
	span.SetStatus(codes.Error, step)
	s.metrics.recordFailure(ctx)

	logger.WarnContext(ctx, "sync failed",
		slog.String("step", step),
		slog.Bool("unavailable", domain.IsUnavailable(err)),
		slog.Any("error", err),
	)

	return outcome
}

// SyncState returns the phase of the current sync attempt, or PhaseIdle.
func (s *Store) SyncState() SyncPhase {
	return s.phase.get()
}

// LastOutcome returns the outcome of the most recent sync attempt.
// The second result is false before the first attempt finishes.
func (s *Store) LastOutcome() (SyncOutcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastOutcome == nil {
		return SyncOutcome{}, false
	}

	return *s.lastOutcome, true
}

// LastSyncAt returns the time of the last successful sync, or the zero time.
func (s *Store) LastSyncAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSyncAt
}

// Status returns the current phase together with the last sync results.
func (s *Store) Status() SyncStatus {
	status := SyncStatus{Phase: s.SyncState()}

	s.mu.RLock()
	defer s.mu.RUnlock()

	status.LastSyncAt = s.lastSyncAt
	if s.lastOutcome != nil {
		outcome := *s.lastOutcome
		status.LastOutcome = &outcome
	}

	return status
}
