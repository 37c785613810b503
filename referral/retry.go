/*
retry.go - Transient-failure retry policy

PURPOSE:
  Wraps storage operations with bounded exponential backoff. Only
  transient failures (ErrStorageUnavailable) are retried; business
  rejections and precondition failures are permanent, because the record
  state has changed and the caller must re-validate rather than replay
  the same write.

SEE ALSO:
  - ledger.go: Applies this policy around ConsumeSlot and Append
*/
package referral

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// storageRetries is the number of retries after the initial attempt.
const storageRetries = 2

// withStorageRetry runs fn, retrying transient storage failures with
// exponential backoff. Any other error aborts immediately.
func withStorageRetry(ctx context.Context, fn func() error) error {
	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, storageRetries), ctx))
}
