package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstantDelay(t *testing.T) {
	b := Constant{Interval: 50 * time.Millisecond}

	assert.Equal(t, 50*time.Millisecond, b.Delay(1))
	assert.Equal(t, 50*time.Millisecond, b.Delay(10))
}

func TestExponentialDelay(t *testing.T) {
	b := Exponential{Base: 100 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, b.Delay(1))
	assert.Equal(t, 200*time.Millisecond, b.Delay(2))
	assert.Equal(t, 400*time.Millisecond, b.Delay(3))
	assert.Equal(t, 800*time.Millisecond, b.Delay(4))
}

func TestExponentialDelayCapped(t *testing.T) {
	b := Exponential{Base: 100 * time.Millisecond, Max: 500 * time.Millisecond}

	assert.Equal(t, 400*time.Millisecond, b.Delay(3))
	assert.Equal(t, 500*time.Millisecond, b.Delay(4))
	// Large attempt numbers must not overflow past the cap.
	assert.Equal(t, 500*time.Millisecond, b.Delay(100))
}

func TestExponentialDelayCustomFactor(t *testing.T) {
	b := Exponential{Base: 100 * time.Millisecond, Factor: 3}

	assert.Equal(t, 100*time.Millisecond, b.Delay(1))
	assert.Equal(t, 300*time.Millisecond, b.Delay(2))
	assert.Equal(t, 900*time.Millisecond, b.Delay(3))
}

func TestExponentialDelayFractionalFactor(t *testing.T) {
	b := Exponential{Base: 100 * time.Millisecond, Factor: 1.5}

	assert.Equal(t, 100*time.Millisecond, b.Delay(1))
	assert.Equal(t, 150*time.Millisecond, b.Delay(2))
	assert.Equal(t, 225*time.Millisecond, b.Delay(3))
}

func TestExponentialDelayDefaultsNonGrowingFactor(t *testing.T) {
	for _, factor := range []float64{0, 0.5, 1} {
		b := Exponential{Base: 100 * time.Millisecond, Factor: factor}
		assert.Equal(t, 200*time.Millisecond, b.Delay(2), "factor %v should fall back to doubling", factor)
	}
}

func TestExponentialDelayClampsAttempt(t *testing.T) {
	b := Exponential{Base: 100 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 100*time.Millisecond, b.Delay(-5))
}

func TestFullJitterBounds(t *testing.T) {
	j := FullJitter{Backoff: Constant{Interval: 100 * time.Millisecond}}

	for i := 0; i < 200; i++ {
		d := j.Delay(1)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 100*time.Millisecond)
	}
}

func TestFullJitterZeroDelay(t *testing.T) {
	j := FullJitter{Backoff: Constant{Interval: 0}}
	assert.Equal(t, time.Duration(0), j.Delay(1))
}

func TestEqualJitterBounds(t *testing.T) {
	j := EqualJitter{Backoff: Constant{Interval: 100 * time.Millisecond}}

	for i := 0; i < 200; i++ {
		d := j.Delay(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.Less(t, d, 100*time.Millisecond)
	}
}
