package retry

import (
	"math/rand"
	"time"
)

// Backoff computes the delay before a given retry attempt.
//
// attempt is 1-based: attempt 1 is the delay after the first failure.
// Implementations must be safe for concurrent use.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Constant waits the same interval between every attempt.
type Constant struct {
	Interval time.Duration
}

func (c Constant) Delay(int) time.Duration {
	return c.Interval
}

// Exponential doubles (or multiplies by Factor) the delay each attempt,
// capped at Max.
//
//	base=100ms factor=2 -> 100ms, 200ms, 400ms, 800ms, ...
type Exponential struct {
	// Base is the first delay. Zero behaves as no delay at all.
	Base time.Duration

	// Factor is the growth multiplier. Values of 1 or below can't grow, so
	// they default to 2; anything above 1 (e.g. a gentle 1.5) is honored.
	Factor float64

	// Max caps the delay. Zero means uncapped.
	Max time.Duration
}

func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	factor := e.Factor
	if factor <= 1 {
		factor = 2
	}

	delay := float64(e.Base)
	for i := 1; i < attempt; i++ {
		delay *= factor
		// Bail out as soon as the cap is hit; the loop can't shrink it back
		// and float growth overflows eventually.
		if e.Max > 0 && delay >= float64(e.Max) {
			return e.Max
		}
	}

	d := time.Duration(delay)
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// FullJitter wraps another Backoff and replaces the computed delay with a
// uniform random duration in [0, delay).
//
// Full jitter spreads retry storms: when a dependency dies, thundering-herd
// clients all back off for the same interval and then stampede together.
// Randomizing the whole interval decorrelates them.
type FullJitter struct {
	Backoff Backoff
}

func (j FullJitter) Delay(attempt int) time.Duration {
	d := j.Backoff.Delay(attempt)
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)))
}

// EqualJitter wraps another Backoff and keeps half the computed delay fixed,
// randomizing only the other half: delay/2 + random(0, delay/2).
//
// The compromise variant: guarantees some backoff (unlike full jitter, which
// can pick ~0) while still spreading callers out.
type EqualJitter struct {
	Backoff Backoff
}

func (j EqualJitter) Delay(attempt int) time.Duration {
	d := j.Backoff.Delay(attempt)
	if d <= 0 {
		return 0
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}
