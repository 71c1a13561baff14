package config

import (
	"fmt"
	"time"
)

// ResilienceConfig groups tuning for the recovery primitives that guard the
// HTTP layer and the scanner: circuit breakers, bulkheads, retries, and the
// Redis-backed rate limiter.
//
// Like ObservabilityConfig it is optional at the root level; defaults are
// injected when the block is missing entirely.
type ResilienceConfig struct {
	Breaker   BreakerConfig   `koanf:"breaker" validate:"required"`
	Bulkhead  BulkheadConfig  `koanf:"bulkhead" validate:"required"`
	Retry     RetryConfig     `koanf:"retry" validate:"required"`
	RateLimit RateLimitConfig `koanf:"rate_limit" validate:"required"`
}

// BreakerConfig tunes the default circuit breaker applied to guarded routes
// and outbound dependencies.
type BreakerConfig struct {
	// FailureThreshold is how many failures within the rolling window trip
	// the breaker from closed to open.
	FailureThreshold int `koanf:"failure_threshold"`

	// MinimumCalls is the minimum number of observed calls before the
	// threshold is evaluated. Prevents one failure at startup from tripping
	// an otherwise idle breaker.
	MinimumCalls int `koanf:"minimum_calls"`

	// Window is the rolling interval over which failures are counted.
	Window time.Duration `koanf:"window"`

	// OpenTimeout is how long an open breaker rejects calls before letting
	// a probe through (half-open).
	OpenTimeout time.Duration `koanf:"open_timeout"`

	// MaxHalfOpenCalls caps concurrent probes while half-open.
	MaxHalfOpenCalls int `koanf:"max_half_open_calls"`

	// SuccessThreshold is how many consecutive probe successes close the
	// breaker again.
	SuccessThreshold int `koanf:"success_threshold"`
}

// BulkheadConfig tunes the concurrency partition around the scanner.
type BulkheadConfig struct {
	// MaxConcurrent is how many executions may run at once.
	MaxConcurrent int `koanf:"max_concurrent"`

	// MaxWait is how long a caller queues for a slot before rejection.
	MaxWait time.Duration `koanf:"max_wait"`
}

// RetryConfig tunes the default retry loop for transient failures.
type RetryConfig struct {
	// MaxAttempts includes the first call, so 3 means "one try, two retries".
	MaxAttempts int `koanf:"max_attempts"`

	// BaseDelay is the first backoff interval.
	BaseDelay time.Duration `koanf:"base_delay"`

	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration `koanf:"max_delay"`
}

// RateLimitConfig tunes the fixed-window Redis rate limiter.
type RateLimitConfig struct {
	// Requests is the number of requests allowed per window per client.
	Requests int `koanf:"requests"`

	// Window is the fixed window length.
	Window time.Duration `koanf:"window"`
}

// DefaultResilienceConfig returns conservative defaults: trip after 5
// failures out of at least 10 calls in 30s, stay open for 15s, close after
// 2 good probes; scans limited to 2 concurrent with a 5s queue; 3 attempts
// with 100ms..5s backoff; 60 requests/min rate limit.
func DefaultResilienceConfig() *ResilienceConfig {
	return &ResilienceConfig{
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			MinimumCalls:     10,
			Window:           30 * time.Second,
			OpenTimeout:      15 * time.Second,
			MaxHalfOpenCalls: 1,
			SuccessThreshold: 2,
		},
		Bulkhead: BulkheadConfig{
			MaxConcurrent: 2,
			MaxWait:       5 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests: 60,
			Window:   time.Minute,
		},
	}
}

// Validate applies cross-field rules the struct tags cannot express.
func (c *ResilienceConfig) Validate() error {
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker failure_threshold must be at least 1")
	}
	if c.Breaker.MinimumCalls < c.Breaker.FailureThreshold {
		return fmt.Errorf("breaker minimum_calls (%d) must be >= failure_threshold (%d)",
			c.Breaker.MinimumCalls, c.Breaker.FailureThreshold)
	}
	if c.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("breaker open_timeout must be positive")
	}
	if c.Breaker.MaxHalfOpenCalls < 1 {
		return fmt.Errorf("breaker max_half_open_calls must be at least 1")
	}
	if c.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("breaker success_threshold must be at least 1")
	}
	if c.Bulkhead.MaxConcurrent < 1 {
		return fmt.Errorf("bulkhead max_concurrent must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry max_delay must be >= base_delay")
	}
	if c.RateLimit.Requests < 1 {
		return fmt.Errorf("rate_limit requests must be at least 1")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit window must be positive")
	}
	return nil
}
