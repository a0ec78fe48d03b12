package timeutil

import (
	"math"
	"time"
)

// BackoffParam describes a capped exponential curve:
// delay(n) = initialDuration * multiplier^(n-1), never above maxDuration.
type BackoffParam struct {
	initialDuration time.Duration
	multiplier      float64
	maxDuration     time.Duration
}

func NewBackoffParam(
	initialDuration time.Duration,
	multiplier float64,
	maxDuration time.Duration,
) BackoffParam {
	return BackoffParam{
		initialDuration: initialDuration,
		multiplier:      multiplier,
		maxDuration:     maxDuration,
	}
}

func (b *BackoffParam) InitialDuration() time.Duration {
	return b.initialDuration
}

func (b *BackoffParam) Multiplier() float64 {
	return b.multiplier
}

func (b *BackoffParam) MaxDuration() time.Duration {
	return b.maxDuration
}

// Delay returns the point of the curve for the n-th consecutive backoff.
// n below 1 is treated as 1.
func (b *BackoffParam) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	delay := float64(b.initialDuration) * math.Pow(b.multiplier, float64(n-1))
	if max := float64(b.maxDuration); delay > max {
		delay = max
	}
	if delay < 0 || math.IsNaN(delay) {
		return 0
	}
	return time.Duration(delay)
}
