package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/archonhq/archon/internal/config"
	"github.com/archonhq/archon/internal/resilience/breaker"
	"github.com/archonhq/archon/internal/resilience/retry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	logger := zerolog.Nop()
	return NewRegistry(config.DefaultResilienceConfig(), &logger)
}

func TestRegistryBreakerLazyCreation(t *testing.T) {
	r := newTestRegistry()

	b1 := r.Breaker("archcheck")
	b2 := r.Breaker("archcheck")
	assert.Same(t, b1, b2, "the same name must resolve to the same instance")

	other := r.Breaker("database")
	assert.NotSame(t, b1, other)

	breakers, _ := r.Snapshot()
	assert.Len(t, breakers, 2)
}

func TestRegistryBulkheadLazyCreation(t *testing.T) {
	r := newTestRegistry()

	b1 := r.Bulkhead("archcheck")
	b2 := r.Bulkhead("archcheck")
	assert.Same(t, b1, b2)
	assert.Equal(t, 2, b1.MaxConcurrent())

	_, bulkheads := r.Snapshot()
	require.Len(t, bulkheads, 1)
	assert.Equal(t, "archcheck", bulkheads[0].Name)
	assert.Equal(t, 0, bulkheads[0].InFlight)
}

func TestRegistryResetBreaker(t *testing.T) {
	r := newTestRegistry()

	assert.False(t, r.ResetBreaker("unknown"))

	r.Breaker("archcheck")
	assert.True(t, r.ResetBreaker("archcheck"))
}

func TestRegistryRetryOptions(t *testing.T) {
	r := newTestRegistry()

	opts := r.RetryOptions()
	require.NotNil(t, opts)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.NotNil(t, opts.Backoff)
}

func TestRegistryStateChangeListener(t *testing.T) {
	r := newTestRegistry()

	changes := make(chan StateChange, 4)
	r.OnStateChange(func(c StateChange) {
		changes <- c
	})

	b := r.Breaker("archcheck")

	// Defaults: trip after 5 failures out of at least 10 calls.
	for i := 0; i < 10; i++ {
		done, err := b.Allow()
		require.NoError(t, err)
		done(false)
	}
	require.Equal(t, breaker.StateOpen, b.State())

	select {
	case change := <-changes:
		assert.Equal(t, "archcheck", change.Name)
		assert.Equal(t, "closed", change.From)
		assert.Equal(t, "open", change.To)
		assert.False(t, change.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("state change never reached the listener")
	}
}

func TestExecutePipelineRetriesTransientFailures(t *testing.T) {
	calls := 0
	p := Pipeline{
		Retry: &retry.Options{MaxAttempts: 3},
	}

	result, err := Execute(p, context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 9, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 9, result)
	assert.Equal(t, 3, calls)
}

func TestExecutePipelineDoesNotRetryOpenBreaker(t *testing.T) {
	b := breaker.New(breaker.Settings{
		Name:             "test",
		FailureThreshold: 1,
		MinimumCalls:     1,
	})

	// Trip it.
	done, err := b.Allow()
	require.NoError(t, err)
	done(false)
	require.Equal(t, breaker.StateOpen, b.State())

	calls := 0
	p := Pipeline{
		Breaker: b,
		Retry:   &retry.Options{MaxAttempts: 5},
	}

	_, err = Execute(p, context.Background(), func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	})

	require.ErrorIs(t, err, breaker.ErrOpen)
	assert.Equal(t, 0, calls, "an open breaker is a deliberate fast-fail, not a transient error")
}

func TestExecutePipelineTimeout(t *testing.T) {
	p := Pipeline{Timeout: 20 * time.Millisecond}

	_, err := Execute(p, context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutePipelinePlain(t *testing.T) {
	result, err := Execute(Pipeline{}, context.Background(), func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}
