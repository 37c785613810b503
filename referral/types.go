/*
Package referral provides the referral-code lifecycle and usage-accounting engine.

PURPOSE:
  This package contains the core types and algorithms for gating
  registration behind referral codes: code generation, validation,
  concurrency-safe redemption against a capped usage limit, and
  analytics derived from the redemption history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Code: A fixed-format capability token (8 chars, A-Z0-9)
  - ReferralCode: The authoritative record for one code
  - UsageEvent: An immutable fact recording one successful redemption

DESIGN PRINCIPLES:
  1. Capacity is truth: a code's remaining life is derived from
     UsedCount vs UsageLimit, never from a cached flag
  2. Immutability: usage events are appended, never updated or deleted
  3. Type Safety: strong typing for codes and user IDs
  4. Single mutation path: UsedCount/Active change only through the
     conditional consume operation on the store

USAGE:
  gen := referral.NewGenerator(store)
  rc, err := gen.Generate(ctx, 5, "admin-1", nil)

  ledger := referral.NewLedger(store, usageLog)
  updated, err := ledger.Redeem(ctx, string(rc.Code), "user-42")

SEE ALSO:
  - validation.go: Format and business-rule checks
  - ledger.go: The redemption state machine
  - store.go: Storage collaborator interfaces
*/
package referral

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Code is an 8-character referral code drawn from the A-Z0-9 alphabet.
type Code string

// UserID identifies the account redeeming or creating a code.
type UserID string

// CodeLength is the fixed length of every referral code.
const CodeLength = 8

// CodeAlphabet is the character set codes are sampled from (36 symbols).
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// =============================================================================
// REFERRAL CODE - Capped, reusable-until-exhausted capability token
// =============================================================================

// ReferralCode is the stored record for one code.
//
// INVARIANTS:
//   - 0 <= UsedCount <= UsageLimit, even under concurrent redemption
//   - Active transitions true -> false only; no reactivation
//   - Code is immutable and globally unique
type ReferralCode struct {
	Code       Code
	UsageLimit int
	UsedCount  int
	Active     bool
	CreatedBy  UserID
	CreatedAt  time.Time

	// ExpiresAt is optional; nil means the code never expires.
	ExpiresAt *time.Time
}

// Remaining returns the number of redemptions still available.
func (rc ReferralCode) Remaining() int {
	if rc.UsedCount >= rc.UsageLimit {
		return 0
	}
	return rc.UsageLimit - rc.UsedCount
}

// Exhausted reports whether the code has consumed its full limit.
// Capacity is checked directly; the Active flag may lag behind a crash
// between the conditional write and later bookkeeping.
func (rc ReferralCode) Exhausted() bool {
	return rc.UsedCount >= rc.UsageLimit
}

// Expired reports whether the code is past its expiry at the given instant.
func (rc ReferralCode) Expired(now time.Time) bool {
	return rc.ExpiresAt != nil && rc.ExpiresAt.Before(now)
}

// =============================================================================
// USAGE EVENT - Immutable record of one successful redemption
// =============================================================================

// UsageEvent records one successful redemption. Append-only: events are
// never updated or deleted by the engine.
type UsageEvent struct {
	ID     string
	Code   Code
	UserID UserID
	UsedAt time.Time
}
