package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the breaker's view of time so tests never sleep.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestBreaker(clk *fakeClock) *Breaker {
	return New(Settings{
		Name:             "test",
		FailureThreshold: 3,
		MinimumCalls:     3,
		Window:           30 * time.Second,
		OpenTimeout:      10 * time.Second,
		MaxHalfOpenCalls: 1,
		SuccessThreshold: 2,
		Now:              clk.Now,
	})
}

func recordFailure(t *testing.T, b *Breaker) {
	t.Helper()
	done, err := b.Allow()
	require.NoError(t, err)
	done(false)
}

func recordSuccess(t *testing.T, b *Breaker) {
	t.Helper()
	done, err := b.Allow()
	require.NoError(t, err)
	done(true)
}

func TestBreakerStartsClosed(t *testing.T) {
	b := newTestBreaker(&fakeClock{now: time.Now()})

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "test", b.Name())
	assert.Equal(t, Counts{}, b.Counts())
}

func TestBreakerTripsAfterFailureThreshold(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	b := newTestBreaker(clk)

	recordFailure(t, b)
	recordFailure(t, b)
	assert.Equal(t, StateClosed, b.State())

	recordFailure(t, b)
	assert.Equal(t, StateOpen, b.State())

	done, err := b.Allow()
	require.ErrorIs(t, err, ErrOpen)
	assert.Nil(t, done)
}

func TestBreakerHonorsMinimumCalls(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	b := New(Settings{
		Name:             "test",
		FailureThreshold: 2,
		MinimumCalls:     5,
		Window:           30 * time.Second,
		OpenTimeout:      10 * time.Second,
		Now:              clk.Now,
	})

	// Two failures exceed the threshold but not the minimum call count.
	recordFailure(t, b)
	recordFailure(t, b)
	assert.Equal(t, StateClosed, b.State())

	recordSuccess(t, b)
	recordSuccess(t, b)
	assert.Equal(t, StateClosed, b.State())

	// Fifth call satisfies the minimum; three failures >= threshold of two.
	recordFailure(t, b)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerWindowExpiryClearsCounts(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	b := newTestBreaker(clk)

	recordFailure(t, b)
	recordFailure(t, b)

	clk.Advance(31 * time.Second)

	// The stale window's failures must not count toward the new one.
	recordFailure(t, b)
	recordFailure(t, b)
	assert.Equal(t, StateClosed, b.State())

	recordFailure(t, b)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	b := newTestBreaker(clk)

	recordFailure(t, b)
	recordFailure(t, b)
	recordFailure(t, b)
	require.Equal(t, StateOpen, b.State())

	// Still cooling down.
	clk.Advance(9 * time.Second)
	_, err := b.Allow()
	require.ErrorIs(t, err, ErrOpen)

	// Cooldown over: the next call becomes a probe.
	clk.Advance(time.Second)
	done, err := b.Allow()
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, b.State())

	// MaxHalfOpenCalls is 1, so a concurrent probe is rejected.
	_, err = b.Allow()
	require.ErrorIs(t, err, ErrOpen)

	done(true)
	assert.Equal(t, StateHalfOpen, b.State(), "one success is below the success threshold")

	recordSuccess(t, b)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	b := newTestBreaker(clk)

	recordFailure(t, b)
	recordFailure(t, b)
	recordFailure(t, b)
	require.Equal(t, StateOpen, b.State())

	clk.Advance(10 * time.Second)
	done, err := b.Allow()
	require.NoError(t, err)
	done(false)

	assert.Equal(t, StateOpen, b.State())

	// The cooldown restarts from the failed probe.
	_, err = b.Allow()
	require.ErrorIs(t, err, ErrOpen)

	clk.Advance(10 * time.Second)
	_, err = b.Allow()
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreakerReset(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	b := newTestBreaker(clk)

	recordFailure(t, b)
	recordFailure(t, b)
	recordFailure(t, b)
	require.Equal(t, StateOpen, b.State())

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Counts{}, b.Counts())

	_, err := b.Allow()
	require.NoError(t, err)
}

func TestBreakerOnStateChange(t *testing.T) {
	type transition struct {
		name string
		from State
		to   State
	}
	var transitions []transition

	clk := &fakeClock{now: time.Now()}
	b := New(Settings{
		Name:             "scanner",
		FailureThreshold: 2,
		MinimumCalls:     2,
		Window:           30 * time.Second,
		OpenTimeout:      5 * time.Second,
		SuccessThreshold: 1,
		Now:              clk.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, transition{name, from, to})
		},
	})

	recordFailure(t, b)
	recordFailure(t, b)

	clk.Advance(5 * time.Second)
	recordSuccess(t, b)

	require.Len(t, transitions, 3)
	assert.Equal(t, transition{"scanner", StateClosed, StateOpen}, transitions[0])
	assert.Equal(t, transition{"scanner", StateOpen, StateHalfOpen}, transitions[1])
	assert.Equal(t, transition{"scanner", StateHalfOpen, StateClosed}, transitions[2])
}

func TestBreakerStaleOutcomeIgnored(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	b := newTestBreaker(clk)

	// Admit a call, then trip the breaker underneath it.
	done, err := b.Allow()
	require.NoError(t, err)

	recordFailure(t, b)
	recordFailure(t, b)
	recordFailure(t, b)
	require.Equal(t, StateOpen, b.State())

	// The stale outcome belongs to the closed state and must not disturb
	// the open one.
	done(true)
	assert.Equal(t, StateOpen, b.State())
}

func TestExecuteRejectsWithoutInvoking(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	b := newTestBreaker(clk)

	recordFailure(t, b)
	recordFailure(t, b)
	recordFailure(t, b)
	require.Equal(t, StateOpen, b.State())

	called := false
	_, err := Execute(b, context.Background(), func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})

	require.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestExecuteRecordsOutcome(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	b := newTestBreaker(clk)

	result, err := Execute(b, context.Background(), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, Counts{Calls: 1, Successes: 1}, b.Counts())

	boom := errors.New("boom")
	_, err = Execute(b, context.Background(), func(ctx context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Counts{Calls: 2, Failures: 1, Successes: 1}, b.Counts())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
