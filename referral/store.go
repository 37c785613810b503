/*
store.go - Storage collaborator interfaces

PURPOSE:
  Defines the minimal capability contract the engine requires from its
  storage collaborator. The engine does not implement durable storage;
  it assumes a backend that can provide a conditional atomic update.

KEY INTERFACES:
  CodeStore: keyed collection of ReferralCode records addressable by code
  UsageLog:  append-only collection of UsageEvent records

THE CONDITIONAL PRIMITIVE:
  ConsumeSlot is the crux of the design. It must increment UsedCount and
  clear Active at the limit in ONE storage operation, conditioned on
  UsedCount still being below UsageLimit at the moment of the write. A
  read-then-write sequence is a race: N concurrent redemptions of a
  limit-1 code can all pass the read-side check and each issue a write,
  pushing UsedCount past the limit. The write itself must fail when the
  precondition no longer holds.

MUTATION CONTRACT:
  UsedCount and Active are mutated ONLY through ConsumeSlot and
  Deactivate. No other component writes those fields.

IMPLEMENTATIONS:
  - referral/store/memory.go: in-memory, for tests and dev
  - store/sqlite/sqlite.go:   production SQLite

SEE ALSO:
  - ledger.go: Orchestrates these operations
*/
package referral

import "context"

// =============================================================================
// CODE STORE - Keyed records with conditional update
// =============================================================================

// CodeStore is the durable mapping from code to its record.
//
// Error contract:
//   - Get/ConsumeSlot/Deactivate return ErrCodeNotFound for unknown codes
//   - InsertIfAbsent returns ErrDuplicateCode on a uniqueness violation
//   - ConsumeSlot returns ErrLimitReached when the capacity precondition
//     fails at write time
//   - Deactivate returns ErrCodeInactive when the code is already inactive
//   - transient infrastructure failures wrap ErrStorageUnavailable
type CodeStore interface {
	// Get returns the current record for a code. Read-only.
	Get(ctx context.Context, code Code) (*ReferralCode, error)

	// InsertIfAbsent persists a new record, failing if the code exists.
	InsertIfAbsent(ctx context.Context, rc ReferralCode) error

	// ConsumeSlot atomically increments UsedCount by one and clears
	// Active when the new count reaches UsageLimit, conditioned on
	// UsedCount < UsageLimit at the moment of the write. Returns the
	// updated record on success.
	ConsumeSlot(ctx context.Context, code Code) (*ReferralCode, error)

	// Deactivate flips Active to false. Forward-only: already-inactive
	// codes are rejected, there is no reactivation.
	Deactivate(ctx context.Context, code Code) error

	// List returns all records. Used by analytics aggregation.
	List(ctx context.Context) ([]ReferralCode, error)
}

// =============================================================================
// USAGE LOG - Append-only redemption history
// =============================================================================

// UsageLog stores usage events. Append-only: no update, no delete.
type UsageLog interface {
	// Append persists one event. Called exactly once per confirmed
	// redemption, after the conditional write has succeeded.
	Append(ctx context.Context, ev UsageEvent) error

	// ByCode returns all events for a code, ordered by UsedAt descending.
	ByCode(ctx context.Context, code Code) ([]UsageEvent, error)

	// CountAll returns the total number of recorded events.
	CountAll(ctx context.Context) (int, error)
}
