package remote

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

const maxRetries = 3

// Do runs fn, retrying with exponential backoff (up to maxRetries extra
// attempts) when the failure is transient. Non-retryable failures and
// context cancellation stop immediately. The returned error is classified.
func Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 30 * time.Second

	attempt := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		// A missing row is an answer, not a transient failure.
		if IsNotFound(err) || !Retryable(Classify(err)) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
	if err != nil {
		if pe, ok := err.(*backoff.PermanentError); ok {
			err = pe.Err
		}
		return Wrap(op, err)
	}
	return nil
}
