// Package breaker implements a circuit breaker.
//
// A breaker sits in front of an unreliable operation and watches it fail.
// Once failures cross a threshold the breaker "opens" and every call fails
// fast with ErrOpen instead of piling more load onto a dependency that is
// already drowning. After a cooldown it lets a limited number of probe calls
// through ("half-open"); enough successes close it again, any failure snaps
// it back open.
//
// State machine:
//
//	Closed    --[failures >= threshold within window]-->  Open
//	Open      --[open timeout elapsed]-->                 HalfOpen
//	HalfOpen  --[success threshold reached]-->            Closed
//	HalfOpen  --[any probe failure]-->                    Open
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call without running it:
// either the breaker is open, or it is half-open and all probe slots are
// taken.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker's position in the state machine.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name used in logs and API responses.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Counts is a snapshot of call statistics for the current rolling window.
type Counts struct {
	// Calls is the number of completed calls observed in the window.
	Calls int

	// Failures and Successes partition Calls.
	Failures  int
	Successes int
}

// Settings configures a Breaker. Name is required; every other field falls
// back to a default in New when left zero.
type Settings struct {
	// Name identifies the breaker in logs, events, and the API.
	Name string

	// FailureThreshold is how many failures within the rolling window trip
	// the breaker. Default 5.
	FailureThreshold int

	// MinimumCalls is the minimum number of completed calls before the
	// threshold is evaluated, so a cold breaker doesn't trip on its first
	// unlucky call. Default 10.
	MinimumCalls int

	// Window is the rolling interval over which counts accumulate before
	// being reset. Default 30s.
	Window time.Duration

	// OpenTimeout is how long the breaker stays open before allowing a
	// probe. Default 15s.
	OpenTimeout time.Duration

	// MaxHalfOpenCalls caps concurrent probes while half-open. Calls beyond
	// the cap fail fast with ErrOpen. Default 1.
	MaxHalfOpenCalls int

	// SuccessThreshold is how many consecutive probe successes close the
	// breaker. Default 2.
	SuccessThreshold int

	// OnStateChange, when set, is invoked on every transition. It runs
	// synchronously while the breaker's lock is held: keep it cheap and do
	// not call back into the breaker from it.
	OnStateChange func(name string, from, to State)

	// Now overrides the clock. Tests use this; production leaves it nil.
	Now func() time.Time
}

// Breaker is a thread-safe circuit breaker instance.
//
// The zero value is not usable; construct with New.
type Breaker struct {
	settings Settings

	mu          sync.Mutex
	state       State
	counts      Counts
	windowStart time.Time

	// openedAt is when the breaker last tripped; cooldown is measured
	// against it.
	openedAt time.Time

	// half-open bookkeeping: probes in flight and consecutive successes.
	halfOpenInFlight  int
	halfOpenSuccesses int
}

// New constructs a Breaker, applying defaults for unset Settings fields.
func New(settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.MinimumCalls <= 0 {
		settings.MinimumCalls = 10
	}
	if settings.Window <= 0 {
		settings.Window = 30 * time.Second
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 15 * time.Second
	}
	if settings.MaxHalfOpenCalls <= 0 {
		settings.MaxHalfOpenCalls = 1
	}
	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 2
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}

	b := &Breaker{settings: settings}
	b.windowStart = settings.Now()
	return b
}

// Allow asks the breaker whether a call may proceed.
//
// On success it returns a done callback that MUST be called exactly once
// with the call's outcome. On rejection it returns ErrOpen and a nil done.
//
// This is the low-level API; most callers want Execute.
func (b *Breaker) Allow() (func(success bool), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Now()

	switch b.state {
	case StateOpen:
		// Cooldown not over yet: fail fast.
		if now.Sub(b.openedAt) < b.settings.OpenTimeout {
			return nil, ErrOpen
		}
		// Cooldown elapsed: this call becomes the first probe.
		b.setState(StateHalfOpen, now)
		b.halfOpenInFlight++
		return b.doneHalfOpen, nil

	case StateHalfOpen:
		if b.halfOpenInFlight >= b.settings.MaxHalfOpenCalls {
			return nil, ErrOpen
		}
		b.halfOpenInFlight++
		return b.doneHalfOpen, nil

	default: // StateClosed
		// Counts live in a rolling window; a stale window starts fresh so
		// ancient failures can't trip a breaker that has been quiet.
		if now.Sub(b.windowStart) >= b.settings.Window {
			b.counts = Counts{}
			b.windowStart = now
		}
		return b.doneClosed, nil
	}
}

// doneClosed records the outcome of a call admitted while closed.
func (b *Breaker) doneClosed(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// The breaker may have moved on (tripped by a concurrent call, or reset)
	// while this call was in flight. Outcomes only count toward the state
	// that admitted them.
	if b.state != StateClosed {
		return
	}

	b.counts.Calls++
	if success {
		b.counts.Successes++
		return
	}

	b.counts.Failures++
	if b.counts.Calls >= b.settings.MinimumCalls &&
		b.counts.Failures >= b.settings.FailureThreshold {
		b.trip(b.settings.Now())
	}
}

// doneHalfOpen records the outcome of a probe call.
func (b *Breaker) doneHalfOpen(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateHalfOpen {
		return
	}

	b.halfOpenInFlight--

	if !success {
		// One bad probe is enough evidence the dependency is still down.
		b.trip(b.settings.Now())
		return
	}

	b.halfOpenSuccesses++
	if b.halfOpenSuccesses >= b.settings.SuccessThreshold {
		b.setState(StateClosed, b.settings.Now())
	}
}

// trip moves the breaker to open and restarts the cooldown clock.
func (b *Breaker) trip(now time.Time) {
	b.openedAt = now
	b.setState(StateOpen, now)
}

// setState performs a transition, resets per-state bookkeeping, and fires
// the OnStateChange callback. Caller must hold b.mu.
func (b *Breaker) setState(to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}

	b.state = to

	switch to {
	case StateClosed:
		b.counts = Counts{}
		b.windowStart = now
	case StateHalfOpen:
		b.halfOpenInFlight = 0
		b.halfOpenSuccesses = 0
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.settings.Name, from, to)
	}
}

// State returns the current state.
//
// An open breaker whose cooldown has elapsed still reports open until the
// next call arrives; transitions happen on traffic, not on a timer.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns a snapshot of the current window's statistics.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string {
	return b.settings.Name
}

// Reset force-closes the breaker and clears all counts.
//
// Exposed through the API so an operator can override a breaker that is
// known to be stale (e.g. the dependency was fixed out of band).
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed, b.settings.Now())
	// setState is a no-op when already closed, so clear counts explicitly.
	b.counts = Counts{}
	b.windowStart = b.settings.Now()
}

// Execute runs fn under the breaker b.
//
// Rejections return ErrOpen without invoking fn. The outcome of fn (error or
// panic) is recorded before being propagated; context cancellation inside fn
// counts as a failure like any other error, because from the breaker's point
// of view the dependency did not deliver.
func Execute[T any](b *Breaker, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	done, err := b.Allow()
	if err != nil {
		return zero, err
	}

	defer func() {
		if r := recover(); r != nil {
			done(false)
			panic(r)
		}
	}()

	result, err := fn(ctx)
	done(err == nil)
	if err != nil {
		return zero, err
	}
	return result, nil
}
