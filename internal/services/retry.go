package services

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	backoffMultiplier    = 2
	backoffRandomization = 0.5
)

// RetryPolicy bounds how often and how patiently transient failures are retried.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Backoff before the second attempt
	MaxDelay    time.Duration // Cap on the un-jittered interval, <= 0 means no cap
}

// DefaultRetryPolicy makes three attempts, backing off from half a second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

// Backoff returns a fresh schedule for one call. It yields at most MaxAttempts-1
// delays, each within ±50% of an interval that doubles from BaseDelay up to MaxDelay,
// and then [backoff.Stop].
func (p RetryPolicy) Backoff() backoff.BackOff {
	ceiling := p.MaxDelay
	if ceiling <= 0 {
		ceiling = time.Duration(math.MaxInt64)
	}

	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(max(p.BaseDelay, 0)),
		backoff.WithMultiplier(backoffMultiplier),
		backoff.WithRandomizationFactor(backoffRandomization),
		backoff.WithMaxInterval(ceiling),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithMaxRetries(exp, uint64(p.attempts()-1))
}

func (p RetryPolicy) attempts() int {
	return max(p.MaxAttempts, 1)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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
