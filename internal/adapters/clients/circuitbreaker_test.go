package clients

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quoteboard/internal/platform/config"
)

type transition struct{ from, to State }

// newTestBreaker returns a breaker driven by a manual clock.
func newTestBreaker(maxFailures, halfOpenLimit int) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cb := NewCircuitBreaker(config.CircuitBreakerConfig{
		MaxFailures:   maxFailures,
		Timeout:       30 * time.Second,
		HalfOpenLimit: halfOpenLimit,
	})
	cb.now = func() time.Time { return now }

	return cb, &now
}

func tripAndRecover(t *testing.T, cb *CircuitBreaker, now *time.Time) {
	t.Helper()

	for cb.State() != StateOpen {
		cb.RecordFailure()
	}

	*now = now.Add(31 * time.Second)
	require.True(t, cb.Allow())
	require.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(5, 3)

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, 1)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())

	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State(), "success resets the failure streak")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_StaysOpenUntilTimeout(t *testing.T) {
	cb, now := newTestBreaker(1, 1)

	cb.RecordFailure()

	*now = now.Add(29 * time.Second)
	assert.False(t, cb.Allow())

	*now = now.Add(time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	tests := []struct {
		name    string
		outcome []bool
		want    State
	}{
		{name: "enough successes close", outcome: []bool{true, true}, want: StateClosed},
		{name: "one success stays half-open", outcome: []bool{true}, want: StateHalfOpen},
		{name: "any failure reopens", outcome: []bool{true, false}, want: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, now := newTestBreaker(1, 2)
			tripAndRecover(t, cb, now)

			for i, ok := range tt.outcome {
				if i > 0 {
					require.True(t, cb.Allow())
				}

				if ok {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
			}

			assert.Equal(t, tt.want, cb.State())
		})
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, now := newTestBreaker(1, 2)
	tripAndRecover(t, cb, now)

	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow(), "only HalfOpenLimit probes may be in flight")

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb, now := newTestBreaker(1, 1)

	var got []transition
	cb.OnStateChange(func(from, to State) {
		got = append(got, transition{from, to})
		// the lock is released before listeners run
		_ = cb.State()
	})

	cb.RecordFailure()
	*now = now.Add(time.Minute)
	cb.Allow()
	cb.RecordSuccess()

	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, got)
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{
		MaxFailures:   100,
		Timeout:       time.Second,
		HalfOpenLimit: 10,
	})

	var wg sync.WaitGroup
	for i := range 1000 {
		wg.Go(func() {
			if !cb.Allow() {
				return
			}

			if i%2 == 0 {
				cb.RecordSuccess()
			} else {
				cb.RecordFailure()
			}
		})
	}

	wg.Wait()

	assert.Contains(t, []State{StateClosed, StateOpen, StateHalfOpen}, cb.State())
}

func TestState_Text(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}

	for state, want := range tests {
		assert.Equal(t, want, state.String())

		text, err := state.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, want, string(text))
	}
}
