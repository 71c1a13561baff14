// Package bulkhead implements a concurrency partition.
//
// A bulkhead caps how many executions of an operation run at once, the way
// ship compartments cap how far flooding spreads. Extra callers wait in a
// bounded queue; when the queue time is up they are rejected with ErrFull
// instead of stacking goroutines until the process keels over.
package bulkhead

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrFull is returned when no execution slot frees up within the caller's
// wait budget.
var ErrFull = errors.New("bulkhead is full")

// Bulkhead limits concurrent executions of the operation it guards.
type Bulkhead struct {
	name string
	sem  *semaphore.Weighted

	maxConcurrent int
	maxWait       time.Duration

	// inFlight tracks claimed slots for the snapshot API.
	inFlight atomic.Int64
}

// New constructs a Bulkhead.
//
//   - maxConcurrent: slots available; values below 1 are bumped to 1.
//   - maxWait: how long Acquire queues for a slot before giving up with
//     ErrFull. Zero means "don't queue at all".
func New(name string, maxConcurrent int, maxWait time.Duration) *Bulkhead {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Bulkhead{
		name:          name,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		maxConcurrent: maxConcurrent,
		maxWait:       maxWait,
	}
}

// Acquire claims an execution slot, waiting up to maxWait (or until ctx is
// done, whichever comes first).
//
// Returns:
//   - nil and the caller owns a slot (Release it exactly once)
//   - ErrFull if the wait budget expired
//   - ctx.Err() if the caller's context ended first
func (b *Bulkhead) Acquire(ctx context.Context) error {
	// Fast path: a free slot costs nothing.
	if b.sem.TryAcquire(1) {
		b.inFlight.Add(1)
		return nil
	}

	if b.maxWait <= 0 {
		return ErrFull
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.maxWait)
	defer cancel()

	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		// Distinguish "queue timeout" from "caller gave up": the caller's
		// own cancellation should surface as their context error.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrFull
	}

	b.inFlight.Add(1)
	return nil
}

// Release returns a slot claimed by Acquire.
func (b *Bulkhead) Release() {
	b.inFlight.Add(-1)
	b.sem.Release(1)
}

// Execute runs fn inside a slot, handling acquire/release. Rejections return
// ErrFull (or the caller's context error) without invoking fn.
func Execute[T any](b *Bulkhead, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := b.Acquire(ctx); err != nil {
		return zero, err
	}
	defer b.Release()

	return fn(ctx)
}

// Name returns the bulkhead's configured name.
func (b *Bulkhead) Name() string {
	return b.name
}

// MaxConcurrent returns the slot count.
func (b *Bulkhead) MaxConcurrent() int {
	return b.maxConcurrent
}

// InFlight reports how many slots are currently claimed.
//
// It is approximate under concurrency (the count can change before the
// caller looks at it) and exists for the snapshot API, not for control flow.
func (b *Bulkhead) InFlight() int {
	return int(b.inFlight.Load())
}
