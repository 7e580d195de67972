package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time          { return c.t }
func (c *stepClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int, reset time.Duration) (*CircuitBreaker, *stepClock) {
	clk := &stepClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(maxFailures, reset)
	cb.now = clk.now
	return cb, clk
}

var errFail = errors.New("fail")

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)
	assert.Equal(t, StateClosed, cb.CurrentState())
	assert.Equal(t, "closed", cb.CurrentState().String())
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errFail }), errFail)
	}
	require.Equal(t, StateOpen, cb.CurrentState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not call through")
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Second)

	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errFail })
	assert.Equal(t, StateClosed, cb.CurrentState())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clk := newTestBreaker(2, 50*time.Millisecond)
	var transitions []string
	cb.OnStateChange = func(from, to State) { transitions = append(transitions, from.String()+"->"+to.String()) }

	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return errFail })
	require.Equal(t, StateOpen, cb.CurrentState())

	clk.advance(50 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.CurrentState())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	cb, clk := newTestBreaker(1, time.Second)

	cb.Execute(func() error { return errFail })
	clk.advance(time.Second)
	assert.ErrorIs(t, cb.Execute(func() error { return errFail }), errFail)
	assert.Equal(t, StateOpen, cb.CurrentState())

	// The reset window restarts from the failed probe.
	clk.advance(500 * time.Millisecond)
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}
