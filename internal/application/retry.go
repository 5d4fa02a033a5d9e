package application

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/star-backup/internal/domain"
)

type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	timer       backoff.Timer
}

// newBackOff waits baseDelay*2^n before retry n+1, without jitter, and allows
// maxAttempts attempts in total.
func (p retryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.baseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = time.Duration(math.MaxInt64)
	if p.maxDelay > 0 {
		bo.MaxInterval = p.maxDelay
	}
	bo.MaxElapsedTime = 0

	// WithMaxRetries treats 0 as unlimited.
	if p.maxAttempts <= 1 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.maxAttempts-1)), ctx)
}

// run calls op until it succeeds or the policy gives up. It returns the number
// of attempts made and the last error.
func (p retryPolicy) run(ctx context.Context, op func(attempt int) error, onRetry func(attempt int, err error, wait time.Duration)) (int, error) {
	attempts := 0
	operation := func() error {
		attempts++
		err := op(attempts)
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if onRetry != nil {
			onRetry(attempts, err, wait)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, p.newBackOff(ctx), notify, p.timer)
	return attempts, err
}

// Conflicting destinations and cancellation do not heal by waiting.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrPathConflict) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, domain.ErrInvalidName)
}
