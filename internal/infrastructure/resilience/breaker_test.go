package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("endpoint down")

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newBreaker(c *clock, changes *[]State) *Breaker {
	return New("webhook", Settings{
		Failures: 3,
		Probes:   1,
		Cooldown: time.Minute,
		Now:      c.Now,
		OnStateChange: func(_ string, _, to State) {
			if changes != nil {
				*changes = append(*changes, to)
			}
		},
	})
}

func fail() error    { return errDown }
func succeed() error { return nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		calls    []func() error
		advance  time.Duration
		expected State
	}{
		{name: "stays closed on successes", calls: []func() error{succeed, succeed, succeed}, expected: StateClosed},
		{name: "success resets the failure run", calls: []func() error{fail, fail, succeed, fail, fail}, expected: StateClosed},
		{name: "opens after consecutive failures", calls: []func() error{fail, fail, fail}, expected: StateOpen},
		{name: "half-open after cooldown", calls: []func() error{fail, fail, fail}, advance: time.Minute, expected: StateHalfOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{now: time.Unix(1000, 0)}
			b := newBreaker(c, nil)
			for _, call := range tt.calls {
				_ = b.Do(call)
			}
			c.now = c.now.Add(tt.advance)
			assert.Equal(t, tt.expected, b.State())
		})
	}
}

func TestOpenBreakerRejectsWithoutCalling(t *testing.T) {
	c := &clock{now: time.Unix(1000, 0)}
	b := newBreaker(c, nil)
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, b.Do(fail), errDown)
	}

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestProbeOutcome(t *testing.T) {
	tests := []struct {
		name     string
		probe    func() error
		expected State
		changes  []State
	}{
		{name: "success closes", probe: succeed, expected: StateClosed, changes: []State{StateOpen, StateHalfOpen, StateClosed}},
		{name: "failure reopens", probe: fail, expected: StateOpen, changes: []State{StateOpen, StateHalfOpen, StateOpen}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{now: time.Unix(1000, 0)}
			var changes []State
			b := newBreaker(c, &changes)
			for i := 0; i < 3; i++ {
				_ = b.Do(fail)
			}
			c.now = c.now.Add(time.Minute)

			_ = b.Do(tt.probe)

			assert.Equal(t, tt.expected, b.State())
			assert.Equal(t, tt.changes, changes)
		})
	}
}

func TestHalfOpenLimitsProbes(t *testing.T) {
	c := &clock{now: time.Unix(1000, 0)}
	b := newBreaker(c, nil)
	for i := 0; i < 3; i++ {
		_ = b.Do(fail)
	}
	c.now = c.now.Add(time.Minute)

	err := b.Do(func() error {
		assert.ErrorIs(t, b.Do(succeed), ErrCircuitOpen)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestPanicCountsAsFailure(t *testing.T) {
	b := New("webhook", Settings{Failures: 1})

	assert.Panics(t, func() {
		_ = b.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
