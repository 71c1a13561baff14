// Package retry implements a context-aware retry loop with pluggable
// backoff and jitter strategies.
//
// The loop is deliberately boring: call, classify, sleep, repeat. The
// interesting decisions live in the Backoff implementations (backoff.go)
// and the IsRetryable predicate, which decides whether an error is worth
// another attempt at all.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/archonhq/archon/internal/resilience/breaker"
	"github.com/archonhq/archon/internal/resilience/bulkhead"
)

// Options configures a retry loop.
type Options struct {
	// MaxAttempts includes the first call, so 3 means one try plus two
	// retries. Values below 1 are bumped to 1.
	MaxAttempts int

	// Backoff computes the delay before each retry. Nil means no delay.
	Backoff Backoff

	// IsRetryable classifies errors. Nil means DefaultRetryable.
	IsRetryable func(error) bool
}

// DefaultRetryable treats every error as transient except:
//
//   - breaker.ErrOpen: an open breaker is a deliberate fast-fail; retrying
//     it just burns the backoff budget against a closed door.
//   - bulkhead.ErrFull: ditto, the partition rejected us on purpose.
//   - context.Canceled / context.DeadlineExceeded: the caller is gone,
//     nobody is waiting for attempt number four.
func DefaultRetryable(err error) bool {
	switch {
	case errors.Is(err, breaker.ErrOpen),
		errors.Is(err, bulkhead.ErrFull),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

// Do runs fn up to opts.MaxAttempts times, sleeping between attempts
// according to opts.Backoff.
//
// Guarantees:
//   - fn runs at least once.
//   - No sleep ever outlives ctx: cancellation during backoff returns
//     immediately with ctx.Err().
//   - A non-retryable error (per IsRetryable) is returned as-is.
//   - Exhausting attempts returns the last error wrapped with the attempt
//     count; errors.Is/As still reach the underlying error.
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	isRetryable := opts.IsRetryable
	if isRetryable == nil {
		isRetryable = DefaultRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}

		if opts.Backoff != nil {
			delay := opts.Backoff.Delay(attempt)
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return zero, ctx.Err()
				case <-timer.C:
				}
			}
		}

		// Between attempts the caller may have gone away without us being
		// mid-sleep (e.g. zero backoff). Check before burning another call.
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}
