/*
validation.go - Format and business-rule checks for referral codes

PURPOSE:
  Validates a code string against its current stored state without
  mutating anything. Used directly by the validate endpoint and re-run
  by the ledger before every redemption attempt.

CHECK ORDER:
  1. Format (8 chars, A-Z0-9) - rejected before any storage read
  2. Existence
  3. Active flag
  4. Expiry
  5. Capacity - checked independently of the Active flag, so a record
     with an inconsistent flag still validates correctly

SEE ALSO:
  - ledger.go: Re-validates via this policy before redeeming
*/
package referral

import (
	"context"
	"regexp"
	"time"
)

// codePattern is the fixed wire format for codes.
var codePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// ValidFormat reports whether a raw string matches the code format.
func ValidFormat(code string) bool {
	return codePattern.MatchString(code)
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator applies format and business-rule checks. Read-only.
type Validator struct {
	Store CodeStore

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewValidator creates a validator backed by the given store.
func NewValidator(store CodeStore) *Validator {
	return &Validator{Store: store, Now: time.Now}
}

// Check validates a raw code string and returns the current record when
// the code is redeemable. Failures are typed errors from errors.go;
// remaining uses are derived from the returned record.
func (v *Validator) Check(ctx context.Context, code string) (*ReferralCode, error) {
	if !ValidFormat(code) {
		return nil, ErrBadFormat
	}

	rc, err := v.Store.Get(ctx, Code(code))
	if err != nil {
		return nil, err
	}

	if !rc.Active {
		return nil, ErrCodeInactive
	}
	if rc.Expired(v.now()) {
		return nil, ErrCodeExpired
	}
	if rc.Exhausted() {
		return nil, ErrLimitReached
	}

	return rc, nil
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}
