// Package retry wraps transient resource acquisition in a bounded
// retry loop.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const defaultInterval = 250 * time.Millisecond

// Do runs op until it succeeds or maxAttempts runs have failed,
// sleeping a short constant interval between attempts. onRetry is
// invoked with the error of every failed attempt that will be retried.
// The error of the last attempt is returned when the budget is
// exhausted.
func Do[T any](ctx context.Context, maxAttempts uint, op func() (T, error), onRetry func(err error)) (T, error) {
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(defaultInterval)),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithNotify(func(err error, _ time.Duration) {
			if onRetry != nil {
				onRetry(err)
			}
		}),
	)
}
