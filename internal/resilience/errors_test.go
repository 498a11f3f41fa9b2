package resilience

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(errors.New("x"), 503), true},
		{"wrapped transient", eris.Wrap(NewTransientError(errors.New("x"), 429), "explain: generate"), true},
		{"permanent wins", NewPermanentError(NewTransientError(errors.New("x"), 500), 400), false},
		{"deadline", context.DeadlineExceeded, true},
		{"conn reset", syscall.ECONNRESET, true},
		{"io timeout text", errors.New("read tcp: i/o timeout"), true},
		{"plain", errors.New("invalid prompt"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, IsTransient(Classify(base, 429)))
	assert.True(t, IsTransient(Classify(base, 529)))
	assert.True(t, IsPermanent(Classify(base, 400)))
	assert.True(t, IsPermanent(Classify(base, 0)))
	assert.True(t, IsTransient(Classify(syscall.ECONNREFUSED, 0)))
	assert.NoError(t, Classify(nil, 500))

	var te *TransientError
	require.ErrorAs(t, Classify(base, 503), &te)
	assert.Equal(t, 503, te.StatusCode)
	assert.ErrorIs(t, te, base)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	now := time.Now()
	cb.now = func() time.Time { return now }

	fail := NewTransientError(errors.New("503"), 503)
	require.NoError(t, cb.Allow())
	cb.Record(fail)
	require.NoError(t, cb.Allow())
	cb.Record(fail)

	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	// Cooldown elapsed: one probe admitted, a second concurrent one rejected.
	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	cb.Record(nil)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_PermanentDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	require.NoError(t, cb.Allow())
	cb.Record(NewPermanentError(errors.New("bad request"), 400))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	now := time.Now()
	cb.now = func() time.Time { return now }

	require.NoError(t, cb.Allow())
	cb.Record(NewTransientError(errors.New("x"), 500))
	now = now.Add(2 * time.Second)
	require.NoError(t, cb.Allow())
	cb.Record(NewTransientError(errors.New("x"), 500))
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_CancelledCallIsNeutral(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Second})
	now := time.Now()
	cb.now = func() time.Time { return now }

	require.NoError(t, cb.Allow())
	cb.Record(NewTransientError(errors.New("x"), 503))
	require.NoError(t, cb.Allow())
	cb.Record(context.Canceled)
	require.NoError(t, cb.Allow())
	cb.Record(NewTransientError(errors.New("x"), 503))
	assert.Equal(t, CircuitOpen, cb.State(), "cancel neither reset nor added a failure")
}
