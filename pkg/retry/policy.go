// Package retry implements the shared retry policy for all outbound
// SDK calls: exponential backoff with jitter, and transient/fatal error
// classification consulted between attempts.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Policy is an immutable retry configuration. Call sites share
// DefaultPolicy read-only or pass their own value.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry (attempt 2).
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// ExponentialBase is the backoff growth factor.
	ExponentialBase float64

	// Jitter perturbs each delay by up to ±10%.
	Jitter bool
}

// DefaultPolicy is the conventional policy. It is a value, never mutated;
// callers needing different limits pass their own Policy.
var DefaultPolicy = Policy{
	MaxAttempts:     3,
	BaseDelay:       1 * time.Second,
	MaxDelay:        30 * time.Second,
	ExponentialBase: 2.0,
	Jitter:          true,
}

// Delay returns the backoff delay to sleep before the given 1-based
// attempt. Attempt 1 never delays; attempt 2 uses BaseDelay; later
// attempts grow exponentially up to MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt-2))
	delay = math.Min(delay, float64(p.MaxDelay))

	if p.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	return time.Duration(math.Max(0, delay))
}
