package services

import (
	"context"
	"math"
	"time"
)

// RetryPolicy is a bounded exponential backoff. The delay before attempt n+1
// is BaseDelay * Multiplier^(n-1).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	// Sleep waits for d or until ctx is done. Tests inject a no-op.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy waits 3s, 6s, 12s, 24s and 48s between six attempts,
// 93s in the worst case
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 6,
		BaseDelay:   3 * time.Second,
		Multiplier:  2,
		Sleep:       SleepContext,
	}
}

// ImmediateRetryPolicy retries without waiting
func ImmediateRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Multiplier:  1,
		Sleep:       func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	}
}

// SleepContext waits for d unless ctx is done first
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay returns the wait after the given 1-based attempt
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1)))
}

// MaxWait returns the total time spent sleeping when every attempt is used
func (p RetryPolicy) MaxWait() time.Duration {
	var total time.Duration
	for i := 1; i < p.MaxAttempts; i++ {
		total += p.Delay(i)
	}
	return total
}

// Do calls fn until it reports done or attempts run out. An error from fn
// counts as a failed attempt; the error of the final attempt is returned.
// A cancelled context stops the loop with ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) (bool, error)) (attempts int, done bool, err error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		done, err = fn(ctx, attempt)
		if done && err == nil {
			return attempt, true, nil
		}
		if attempt == maxAttempts {
			return attempt, false, err
		}
		if serr := sleep(ctx, p.Delay(attempt)); serr != nil {
			return attempt, false, serr
		}
	}
	return maxAttempts, false, err
}
