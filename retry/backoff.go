// Package retry provides exponential backoff strategies for push delivery
// attempts. The push gateway uses it to pace transient-error retries within a
// single delivery attempt's time budget.
package retry

import (
	"math"
	"time"
)

// Strategy defines the backoff behavior for retrying a transient push failure.
//
// The retry schedule follows: delay = min(BaseDelay * ExponentialBase^attempt, MaxDelay)
//
// Example with defaults (500ms base, 2.0 exponential, 5s max):
//
//	Delay(0): 500ms
//	Delay(1): 1s
//	Delay(2): 2s
type Strategy struct {
	MaxAttempts     int           // Maximum delivery attempts before giving up
	BaseDelay       time.Duration // Initial retry delay (first retry)
	MaxDelay        time.Duration // Maximum retry delay cap
	ExponentialBase float64       // Backoff multiplier (e.g., 2.0 for doubling)
}

// DefaultStrategy returns the default in-call retry strategy.
// Configuration: 3 max attempts, 500ms→5s exponential backoff.
//
// The schedule is intentionally short: all retries for one recipient must fit
// inside the dispatcher's per-attempt timeout.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxAttempts:     3,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		ExponentialBase: 2.0,
	}
}

// Delay calculates the backoff delay for a given attempt.
// Formula: delay = min(BaseDelay * ExponentialBase^attemptNumber, MaxDelay)
func (s Strategy) Delay(attemptNumber int) time.Duration {
	if attemptNumber <= 0 {
		return s.BaseDelay
	}

	delay := float64(s.BaseDelay) * math.Pow(s.ExponentialBase, float64(attemptNumber))

	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}

	return time.Duration(delay)
}

// IsRetryable checks if another attempt is allowed.
// Returns true if the attempt count is below the maximum attempts limit.
func (s Strategy) IsRetryable(attemptCount int) bool {
	return attemptCount < s.MaxAttempts
}
