package common

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryPolicy bounds every remote call: each attempt gets its own timeout and
// failed attempts wait BaseDelay, 2*BaseDelay, ... before the next one.
type RetryPolicy struct {
	Attempts  int
	Timeout   time.Duration
	BaseDelay time.Duration
}

// DefaultRetryPolicy is three attempts of 30s each, sleeping 2s then 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Timeout: 30 * time.Second, BaseDelay: 2 * time.Second}
}

// RetryObserver is told about every failed attempt.
type RetryObserver func(op string, attempt int, err error)

// Retry runs call under policy and returns its result or the last error.
// Cancelling ctx stops further attempts.
func Retry[T any](ctx context.Context, policy RetryPolicy, op string, logger zerolog.Logger, observe RetryObserver, call func(ctx context.Context) (T, error)) (T, error) {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = policy.BaseDelay << uint(policy.Attempts)
	b.MaxElapsedTime = 0

	attempt := 0
	var result T
	operation := func() error {
		attempt++
		attemptCtx := ctx
		if policy.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
			defer cancel()
		}

		value, err := call(attemptCtx)
		if err != nil {
			if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				err = fmt.Errorf("%s timed out after %s (attempt %d): %w", op, policy.Timeout, attempt, err)
			}
			logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("[Retry] attempt failed")
			if observe != nil {
				observe(op, attempt, err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		result = value
		return nil
	}

	policyBackoff := backoff.WithContext(backoff.WithMaxRetries(b, uint64(policy.Attempts-1)), ctx)
	if err := backoff.Retry(operation, policyBackoff); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
