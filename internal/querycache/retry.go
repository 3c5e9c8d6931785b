package querycache

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines how a failed fetch or mutation is retried.
type RetryPolicy struct {
	Retries       int           // Attempts after the first one
	BaseDelay     time.Duration // Delay before the first retry
	MaxDelay      time.Duration // Cap on any single delay
	BackoffFactor float64       // Exponential backoff multiplier, 1 for a fixed delay
	JitterFactor  float64       // Fraction of the delay randomised in both directions

	// ShouldRetry filters retryable errors. Nil retries everything except
	// context cancellation.
	ShouldRetry func(error) bool
}

// NoRetry fails on the first error.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// FixedRetry retries n times, waiting delay before each retry.
func FixedRetry(n int, delay time.Duration) RetryPolicy {
	return RetryPolicy{
		Retries:       n,
		BaseDelay:     delay,
		MaxDelay:      delay,
		BackoffFactor: 1,
	}
}

// BackoffRetry retries n times with exponential backoff starting at one
// second and capped at thirty.
func BackoffRetry(n int) RetryPolicy {
	return RetryPolicy{
		Retries:       n,
		BaseDelay:     time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// Delay returns the wait before retry number attempt (zero based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	backoff := float64(p.BaseDelay) * math.Pow(factor, float64(attempt))

	jitter := backoff * p.JitterFactor * (rand.Float64() - 0.5) * 2
	delay := time.Duration(backoff + jitter)

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

func (p RetryPolicy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}
	return true
}

// run calls fn until it succeeds, the policy is exhausted, or ctx ends. The
// last error is returned unwrapped so callers can classify it.
func run[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 0; attempt <= p.Retries; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil || !p.retryable(err) || attempt == p.Retries {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, err
		case <-timer.C:
		}
	}
	return result, err
}
