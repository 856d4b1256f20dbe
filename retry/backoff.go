// Package retry provides the exponential backoff used when re-establishing a
// lost live channel.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Strategy defines reconnect backoff.
//
// The schedule follows: delay = min(BaseDelay * ExponentialBase^attempt, MaxDelay)
//
// Example with defaults (1s base, 2.0 exponential, 30s max):
//
//	Attempt 0: 1s
//	Attempt 1: 2s
//	Attempt 2: 4s
//	Attempt 3: 8s
//	Attempt 4: 16s
//	Attempt 5: 30s (capped)
type Strategy struct {
	MaxAttempts     int           // Give up after this many attempts; 0 means never
	BaseDelay       time.Duration // Delay before the first reconnect
	MaxDelay        time.Duration // Delay cap
	ExponentialBase float64       // Backoff multiplier (e.g., 2.0 for doubling)
}

// DefaultStrategy returns the default reconnect strategy: unlimited attempts,
// 1s→30s exponential backoff.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxAttempts:     0,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}
}

// Delay returns the wait before reconnect attempt number attempt (0-based).
func (s Strategy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return s.capped(float64(s.BaseDelay))
	}

	return s.capped(float64(s.BaseDelay) * math.Pow(s.ExponentialBase, float64(attempt)))
}

func (s Strategy) capped(delay float64) time.Duration {
	if s.MaxDelay > 0 && delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// IsRetryable reports whether another attempt is allowed after attempts
// failed ones.
func (s Strategy) IsRetryable(attempts int) bool {
	return s.MaxAttempts <= 0 || attempts < s.MaxAttempts
}

// Validate checks that the strategy can produce a schedule.
func (s Strategy) Validate() error {
	if s.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive, got %v", s.BaseDelay)
	}
	if s.ExponentialBase < 1 {
		return fmt.Errorf("exponential base must be >= 1, got %v", s.ExponentialBase)
	}
	if s.MaxDelay != 0 && s.MaxDelay < s.BaseDelay {
		return fmt.Errorf("max delay %v is below base delay %v", s.MaxDelay, s.BaseDelay)
	}
	return nil
}

// Wait blocks for Delay(attempt) or until ctx is done.
func (s Strategy) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(s.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Schedule returns a human-readable description of the first n delays.
//
// Example output:
//
//	Reconnect Schedule:
//	  Attempt 1: after 1s
//	  Attempt 2: after 2s
//	  ...
func (s Strategy) Schedule(n int) string {
	schedule := "Reconnect Schedule:\n"
	for i := 0; i < n; i++ {
		if !s.IsRetryable(i) {
			schedule += "  → Give up\n"
			break
		}
		schedule += fmt.Sprintf("  Attempt %d: after %v\n", i+1, s.Delay(i))
	}
	return schedule
}
