package kube

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryRead runs op up to attempts times with exponential backoff. Only
// idempotent reads may use it. Errors for which retryable reports false stop
// the loop immediately.
func RetryRead(ctx context.Context, attempts int, retryable func(error) bool, op func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	schedule := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err != nil && retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, schedule)
}
