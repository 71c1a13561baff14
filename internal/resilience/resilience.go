// Package resilience composes the recovery primitives (breaker, bulkhead,
// retry) into pipelines and keeps a registry of named instances so the API
// layer can snapshot and reset them.
//
// Composition order, outermost first:
//
//	retry( breaker( bulkhead( timeout( fn ) ) ) )
//
// The order matters: retry must sit outside the breaker so a retried call
// re-asks the breaker for permission, and the breaker sits outside the
// bulkhead so fast-fails don't consume concurrency slots.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/archonhq/archon/internal/config"
	"github.com/archonhq/archon/internal/resilience/breaker"
	"github.com/archonhq/archon/internal/resilience/bulkhead"
	"github.com/archonhq/archon/internal/resilience/retry"
	"github.com/rs/zerolog"
)

// Pipeline bundles the primitives guarding one operation. Any field may be
// nil/zero, in which case that layer is skipped.
type Pipeline struct {
	// Timeout bounds a single attempt. Zero means no per-attempt timeout.
	Timeout time.Duration

	// Bulkhead caps concurrency across attempts.
	Bulkhead *bulkhead.Bulkhead

	// Breaker fails fast when the operation keeps failing.
	Breaker *breaker.Breaker

	// Retry re-runs transient failures. Nil means single attempt.
	Retry *retry.Options
}

// Execute runs fn through the pipeline p.
func Execute[T any](p Pipeline, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	// Build the call inside-out, wrapping fn layer by layer.
	call := fn

	if p.Timeout > 0 {
		inner := call
		call = func(ctx context.Context) (T, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
			defer cancel()
			return inner(attemptCtx)
		}
	}

	if p.Bulkhead != nil {
		bh := p.Bulkhead
		inner := call
		call = func(ctx context.Context) (T, error) {
			return bulkhead.Execute(bh, ctx, inner)
		}
	}

	if p.Breaker != nil {
		br := p.Breaker
		inner := call
		call = func(ctx context.Context) (T, error) {
			return breaker.Execute(br, ctx, inner)
		}
	}

	if p.Retry != nil {
		return retry.Do(ctx, *p.Retry, call)
	}
	return call(ctx)
}

// BreakerSnapshot is the API-facing view of one breaker.
type BreakerSnapshot struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Calls     int    `json:"calls"`
	Failures  int    `json:"failures"`
	Successes int    `json:"successes"`
}

// BulkheadSnapshot is the API-facing view of one bulkhead.
type BulkheadSnapshot struct {
	Name          string `json:"name"`
	MaxConcurrent int    `json:"max_concurrent"`
	InFlight      int    `json:"in_flight"`
}

// StateChange describes one breaker transition, for the audit trail.
type StateChange struct {
	Name string
	From string
	To   string
	At   time.Time
}

// Registry owns the process's named breakers and bulkheads.
//
// Breakers are created lazily from the configured defaults the first time a
// name is requested, so middleware can guard routes without pre-declaring
// them. State changes are logged and fanned out to an optional listener
// (the server wires one that persists breaker_events and records APM
// custom events).
type Registry struct {
	cfg    *config.ResilienceConfig
	logger *zerolog.Logger

	mu        sync.Mutex
	breakers  map[string]*breaker.Breaker
	bulkheads map[string]*bulkhead.Bulkhead

	// onChange receives transitions from any registered breaker. Called
	// from a fresh goroutine so breaker locks are never held into it.
	onChange func(StateChange)
}

// NewRegistry constructs a Registry using cfg for default tunings.
func NewRegistry(cfg *config.ResilienceConfig, logger *zerolog.Logger) *Registry {
	return &Registry{
		cfg:       cfg,
		logger:    logger,
		breakers:  make(map[string]*breaker.Breaker),
		bulkheads: make(map[string]*bulkhead.Bulkhead),
	}
}

// OnStateChange installs the transition listener. Install before traffic
// starts; the registry does not lock around reads of the listener once
// breakers exist.
func (r *Registry) OnStateChange(fn func(StateChange)) {
	r.onChange = fn
}

// Breaker returns the named breaker, creating it from the configured
// defaults on first use.
func (r *Registry) Breaker(name string) *breaker.Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	b := breaker.New(breaker.Settings{
		Name:             name,
		FailureThreshold: r.cfg.Breaker.FailureThreshold,
		MinimumCalls:     r.cfg.Breaker.MinimumCalls,
		Window:           r.cfg.Breaker.Window,
		OpenTimeout:      r.cfg.Breaker.OpenTimeout,
		MaxHalfOpenCalls: r.cfg.Breaker.MaxHalfOpenCalls,
		SuccessThreshold: r.cfg.Breaker.SuccessThreshold,
		OnStateChange:    r.handleStateChange,
	})
	r.breakers[name] = b
	return b
}

// Bulkhead returns the named bulkhead, creating it from the configured
// defaults on first use.
func (r *Registry) Bulkhead(name string) *bulkhead.Bulkhead {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bulkheads[name]; ok {
		return b
	}

	b := bulkhead.New(name, r.cfg.Bulkhead.MaxConcurrent, r.cfg.Bulkhead.MaxWait)
	r.bulkheads[name] = b
	return b
}

// RetryOptions builds the default retry options (exponential backoff with
// full jitter) from config.
func (r *Registry) RetryOptions() *retry.Options {
	return &retry.Options{
		MaxAttempts: r.cfg.Retry.MaxAttempts,
		Backoff: retry.FullJitter{
			Backoff: retry.Exponential{
				Base: r.cfg.Retry.BaseDelay,
				Max:  r.cfg.Retry.MaxDelay,
			},
		},
	}
}

// handleStateChange logs the transition and forwards it to the listener.
//
// The breaker invokes this while holding its own lock, so the listener runs
// on a separate goroutine: persisting an event must never block (or worse,
// re-enter) the breaker.
func (r *Registry) handleStateChange(name string, from, to breaker.State) {
	change := StateChange{
		Name: name,
		From: from.String(),
		To:   to.String(),
		At:   time.Now().UTC(),
	}

	event := r.logger.Warn()
	if to == breaker.StateClosed {
		event = r.logger.Info()
	}
	event.
		Str("breaker", change.Name).
		Str("from", change.From).
		Str("to", change.To).
		Msg("circuit breaker state change")

	if r.onChange != nil {
		go r.onChange(change)
	}
}

// ResetBreaker force-closes the named breaker.
// Returns false when no breaker with that name exists yet.
func (r *Registry) ResetBreaker(name string) bool {
	r.mu.Lock()
	b, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return false
	}
	b.Reset()
	return true
}

// Snapshot lists every registered breaker and bulkhead, sorted by name in
// the handler (maps here, order there).
func (r *Registry) Snapshot() ([]BreakerSnapshot, []BulkheadSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	breakers := make([]BreakerSnapshot, 0, len(r.breakers))
	for name, b := range r.breakers {
		counts := b.Counts()
		breakers = append(breakers, BreakerSnapshot{
			Name:      name,
			State:     b.State().String(),
			Calls:     counts.Calls,
			Failures:  counts.Failures,
			Successes: counts.Successes,
		})
	}

	bulkheads := make([]BulkheadSnapshot, 0, len(r.bulkheads))
	for name, b := range r.bulkheads {
		bulkheads = append(bulkheads, BulkheadSnapshot{
			Name:          name,
			MaxConcurrent: b.MaxConcurrent(),
			InFlight:      b.InFlight(),
		})
	}

	return breakers, bulkheads
}
