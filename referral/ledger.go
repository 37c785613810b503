/*
ledger.go - The referral code state machine

PURPOSE:
  The Ledger governs a code's lifecycle and is the ONLY component that
  mutates usage accounting. States per code:

    Active -> Exhausted   (UsedCount reaches UsageLimit, terminal)
    Active -> Deactivated (explicit, terminal)
    any    -> Expired     (time-based, derived at read time from ExpiresAt)

REDEMPTION FLOW:
  1. Re-validate (format, existence, active, expiry, capacity)
  2. Conditional atomic consume: the store increments UsedCount and
     clears Active at the limit in one operation, conditioned on
     UsedCount < UsageLimit at write time
  3. Losing the race for the last slot returns ErrLimitReached - a
     legitimate outcome under contention, never retried
  4. On success, append exactly one UsageEvent

ORDERING:
  For a single code, successful redemptions are totally ordered by the
  commit order of the conditional update. Across codes there is no
  ordering guarantee.

TIMEOUTS:
  A redemption that times out waiting on storage is an UNKNOWN outcome.
  The ledger never re-issues the write after it may have committed;
  callers must re-validate before retrying. With no idempotency key, a
  caller-level retry of a timed-out redemption can produce a duplicate
  usage record - a known limitation, not silently absorbed here.

SEE ALSO:
  - store.go: ConsumeSlot contract (the conditional primitive)
  - validation.go: The checks re-run in step 1
*/
package referral

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger coordinates validation, the conditional consume, and usage
// recording. It holds no state of its own; the store is the truth.
type Ledger struct {
	Store     CodeStore
	Usage     UsageLog
	Validator *Validator

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewLedger creates a ledger over the given store and usage log.
func NewLedger(store CodeStore, usage UsageLog) *Ledger {
	return &Ledger{
		Store:     store,
		Usage:     usage,
		Validator: NewValidator(store),
		Now:       time.Now,
	}
}

// Redeem consumes one usage slot for userID. On success it returns the
// updated record and has appended exactly one UsageEvent. All failures
// are typed: rejections (format, not found, inactive, expired, limit)
// leave the record untouched and append nothing.
func (l *Ledger) Redeem(ctx context.Context, code string, userID UserID) (*ReferralCode, error) {
	// Step 1: cheap read-side screen. Rejections here never touch the
	// write path. The capacity check below is advisory only - the
	// authoritative check is the write-time precondition.
	if _, err := l.Validator.Check(ctx, code); err != nil {
		return nil, err
	}

	// Step 2: conditional atomic consume. Transient storage failures are
	// retried; a precondition failure (ErrLimitReached) is final.
	var updated *ReferralCode
	err := withStorageRetry(ctx, func() error {
		rc, err := l.Store.ConsumeSlot(ctx, Code(code))
		if err != nil {
			return err
		}
		updated = rc
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 3: record the redemption, exactly once per confirmed write.
	ev := UsageEvent{
		ID:     uuid.NewString(),
		Code:   updated.Code,
		UserID: userID,
		UsedAt: l.now(),
	}
	err = withStorageRetry(ctx, func() error {
		return l.Usage.Append(ctx, ev)
	})
	if err != nil {
		// The slot is consumed; surface the recording failure rather
		// than inventing a rollback on an append-only log.
		return updated, err
	}

	return updated, nil
}

// Deactivate explicitly retires a code. Forward-only: an already
// inactive code returns ErrCodeInactive, and there is no reactivation.
func (l *Ledger) Deactivate(ctx context.Context, code string) error {
	if !ValidFormat(code) {
		return ErrBadFormat
	}
	return withStorageRetry(ctx, func() error {
		return l.Store.Deactivate(ctx, Code(code))
	})
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
