package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	retryInitialInterval = 500 * time.Millisecond
	retryMaxInterval     = 10 * time.Second
	retryMaxElapsed      = 2 * time.Minute
)

// RetryTransient runs op, retrying with bounded exponential backoff as long as
// op returns an error marked with Transient. Any other error stops the retry
// loop immediately. The orchestrator itself never retries; this is the only
// retry layer between a step executor and a provider.
func RetryTransient(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = retryMaxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}
