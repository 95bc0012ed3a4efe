package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines the service's timeout hierarchy
//
// Hierarchy (from outermost to innermost):
//
//	HTTP Handler (60s)
//	  ↓
//	Closure / Reopen operation (50s)
//	  ↓
//	Aggregation (trip store scans, 30s)
//	  ↓
//	External store call (payment tracker, registry, 10s)
//	  ↓
//	Database query (pool-level defaults)
//
// Each layer completes before its parent times out, so a slow trip store
// fails the closure atomically instead of leaving it half-applied.
type TimeoutConfig struct {
	// HTTPHandler bounds one operator or cron request end to end
	HTTPHandler time.Duration

	// Closure bounds a whole close/reopen/recompute operation
	Closure time.Duration

	// Aggregation bounds the trip-store scan and rate resolution phase
	Aggregation time.Duration

	// ExternalStore bounds a single payment-tracker or registry call
	ExternalStore time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:   60 * time.Second,
		Closure:       50 * time.Second,
		Aggregation:   30 * time.Second,
		ExternalStore: 10 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:   5 * time.Second,
		Closure:       4 * time.Second,
		Aggregation:   3 * time.Second,
		ExternalStore: 1 * time.Second,
	}
}

// WithTimeout wraps ctx with the given timeout, passing through a zero
// duration unchanged
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
