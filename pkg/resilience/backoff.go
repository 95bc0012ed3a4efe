package resilience

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter.
// Jitter spreads retries over time so concurrent closures hitting the same
// flaky external store do not retry in lockstep.
type ExponentialBackoff struct {
	BaseDelay  time.Duration // Initial delay (e.g., 100ms)
	MaxDelay   time.Duration // Maximum delay (e.g., 5s)
	Multiplier float64       // Exponential multiplier (typically 2.0)
	Jitter     float64       // Jitter factor (0.0-1.0, typically 0.1 for ±10%)
}

// ExternalStoreBackoff returns the backoff used for payment-tracker and
// registry reads: three quick attempts capped well under the external-store
// timeout budget.
func ExternalStoreBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}
}

// NextDelay calculates the delay for the given attempt number (0-indexed).
// The delay is BaseDelay * (Multiplier ^ attempt) ± jitter, capped at
// MaxDelay.
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return eb.BaseDelay
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	jitterAmount := delay * eb.Jitter
	jitter := (rand.Float64()*2 - 1) * jitterAmount

	finalDelay := time.Duration(delay + jitter)
	if finalDelay < 0 {
		finalDelay = eb.BaseDelay
	}
	return finalDelay
}

// FixedBackoff implements a simple fixed delay backoff
type FixedBackoff struct {
	Delay time.Duration
}

// NextDelay returns the fixed delay regardless of attempt number
func (fb *FixedBackoff) NextDelay(attempt int) time.Duration {
	return fb.Delay
}
