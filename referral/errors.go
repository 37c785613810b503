/*
errors.go - Centralized error types for the referral engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure in the core is representable as a typed error; nothing
  panics across the package boundary.

ERROR CATEGORIES:
  1. Rejections - business-rule failures (bad format, exhausted, expired)
  2. Storage errors - transient infrastructure failures, retryable
  3. Generation errors - code-collision retry budget exhausted

USAGE:
  HTTP handlers map these with errors.Is:

    if referral.IsRejection(err) {
        // 4xx with a structured body
    }

SEE ALSO:
  - ledger.go: Produces these errors
  - store.go: Store implementations return the storage sentinels
*/
package referral

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBadFormat is returned when a code does not match the fixed
	// 8-character A-Z0-9 format. Detected before any storage read.
	ErrBadFormat = errors.New("invalid code format")

	// ErrCodeNotFound is returned when no record exists for a code.
	ErrCodeNotFound = errors.New("code not found")

	// ErrCodeInactive is returned when a code has been deactivated.
	ErrCodeInactive = errors.New("code is inactive")

	// ErrCodeExpired is returned when a code is past its expiry timestamp.
	ErrCodeExpired = errors.New("code has expired")

	// ErrLimitReached is returned when a code has no remaining capacity.
	// Under contention this is a legitimate outcome of losing the race
	// for the last slot, not an infrastructure error.
	ErrLimitReached = errors.New("code has reached its usage limit")

	// ErrGenerationExhausted is returned when repeated code collisions
	// consume the generator's retry budget.
	ErrGenerationExhausted = errors.New("code generation exhausted retries")

	// ErrDuplicateCode is returned by InsertIfAbsent when the generated
	// code already exists. The generator retries on this.
	ErrDuplicateCode = errors.New("duplicate code")

	// ErrStorageUnavailable wraps transient storage failures. Retried by
	// policy, then surfaced.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnauthorized is returned when an operation requires an
	// authenticated identity and none is present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidUsageLimit is returned when creating a code with a
	// non-positive usage limit.
	ErrInvalidUsageLimit = errors.New("usage limit must be positive")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRejection returns true for business-rule failures that map to a 4xx
// response. Storage and generation failures are not rejections.
func IsRejection(err error) bool {
	return errors.Is(err, ErrBadFormat) ||
		errors.Is(err, ErrCodeNotFound) ||
		errors.Is(err, ErrCodeInactive) ||
		errors.Is(err, ErrCodeExpired) ||
		errors.Is(err, ErrLimitReached) ||
		errors.Is(err, ErrInvalidUsageLimit)
}

// IsNotFound returns true if the error indicates a missing code.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCodeNotFound)
}

// IsRetryable returns true if the operation might succeed on retry.
// Precondition failures (ErrLimitReached) are deliberately NOT retryable:
// the record state has changed and the caller must re-validate.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
