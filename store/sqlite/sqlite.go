/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements referral.CodeStore and referral.UsageLog using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  referral_codes: one row per code, mutated only by the conditional consume
  usage_events:   append-only redemption history

THE CONDITIONAL CONSUME:
  ConsumeSlot is a single UPDATE guarded by used_count < usage_limit.
  The guard makes the write itself fail (zero rows affected) when a
  concurrent redemption already took the last slot, so used_count can
  never exceed usage_limit regardless of interleaving. A follow-up read
  discriminates "no such code" from "limit reached".

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time, better crash
  recovery. A mutex serializes writers at the process level.

ERROR MAPPING:
  - PK constraint violation on insert -> referral.ErrDuplicateCode
  - driver/IO failures               -> wrap referral.ErrStorageUnavailable

USAGE:
  store, err := sqlite.New("./data/referral.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := referral.NewLedger(store, store)

SEE ALSO:
  - referral/store.go: Interface contracts
  - referral/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/referral-engine/referral"
)

// Store implements referral.CodeStore and referral.UsageLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Referral codes (mutated only via the conditional consume)
	CREATE TABLE IF NOT EXISTS referral_codes (
		code TEXT PRIMARY KEY,
		usage_limit INTEGER NOT NULL CHECK (usage_limit > 0),
		used_count INTEGER NOT NULL DEFAULT 0 CHECK (used_count >= 0),
		active INTEGER NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT
	);

	-- Usage events (append-only)
	CREATE TABLE IF NOT EXISTS usage_events (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL REFERENCES referral_codes(code),
		user_id TEXT NOT NULL,
		used_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_events_code_used_at
		ON usage_events(code, used_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CODE STORE
// =============================================================================

// Get returns the current record for a code.
func (s *Store) Get(ctx context.Context, code referral.Code) (*referral.ReferralCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(ctx, code)
}

func (s *Store) get(ctx context.Context, code referral.Code) (*referral.ReferralCode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT code, usage_limit, used_count, active, created_by, created_at, expires_at
		FROM referral_codes WHERE code = ?`, string(code))

	rc, err := scanCode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, referral.ErrCodeNotFound
	}
	if err != nil {
		return nil, transient("get code", err)
	}
	return rc, nil
}

// InsertIfAbsent persists a new record, failing on a code collision.
func (s *Store) InsertIfAbsent(ctx context.Context, rc referral.ReferralCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO referral_codes (code, usage_limit, used_count, active, created_by, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rc.Code), rc.UsageLimit, rc.UsedCount, boolToInt(rc.Active),
		string(rc.CreatedBy), rc.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(rc.ExpiresAt))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return referral.ErrDuplicateCode
		}
		return transient("insert code", err)
	}
	return nil
}

// ConsumeSlot performs the conditional atomic update: one guarded UPDATE
// that increments used_count and clears active at the limit, failing
// outright when the capacity precondition no longer holds.
func (s *Store) ConsumeSlot(ctx context.Context, code referral.Code) (*referral.ReferralCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE referral_codes
		SET used_count = used_count + 1,
		    active = CASE WHEN used_count + 1 >= usage_limit THEN 0 ELSE active END
		WHERE code = ? AND used_count < usage_limit`, string(code))
	if err != nil {
		return nil, transient("consume slot", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, transient("consume slot", err)
	}
	if rows == 0 {
		// Precondition failed: either the code does not exist or the
		// last slot was already taken.
		if _, err := s.get(ctx, code); err != nil {
			return nil, err
		}
		return nil, referral.ErrLimitReached
	}

	return s.get(ctx, code)
}

// Deactivate flips active to false. Forward-only: already-inactive
// codes are rejected.
func (s *Store) Deactivate(ctx context.Context, code referral.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE referral_codes SET active = 0
		WHERE code = ? AND active = 1`, string(code))
	if err != nil {
		return transient("deactivate code", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return transient("deactivate code", err)
	}
	if rows == 0 {
		if _, err := s.get(ctx, code); err != nil {
			return err
		}
		return referral.ErrCodeInactive
	}
	return nil
}

// List returns all code records.
func (s *Store) List(ctx context.Context) ([]referral.ReferralCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, usage_limit, used_count, active, created_by, created_at, expires_at
		FROM referral_codes ORDER BY created_at`)
	if err != nil {
		return nil, transient("list codes", err)
	}
	defer rows.Close()

	var codes []referral.ReferralCode
	for rows.Next() {
		rc, err := scanCode(rows)
		if err != nil {
			return nil, transient("list codes", err)
		}
		codes = append(codes, *rc)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("list codes", err)
	}
	return codes, nil
}

// =============================================================================
// USAGE LOG
// =============================================================================

// Append records one usage event. Append-only: no UPDATE or DELETE
// statements exist for usage_events outside Reset.
func (s *Store) Append(ctx context.Context, ev referral.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events (id, code, user_id, used_at)
		VALUES (?, ?, ?, ?)`,
		ev.ID, string(ev.Code), string(ev.UserID), ev.UsedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return transient("append usage event", err)
	}
	return nil
}

// ByCode returns usage events for a code, newest first.
func (s *Store) ByCode(ctx context.Context, code referral.Code) ([]referral.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, user_id, used_at FROM usage_events
		WHERE code = ? ORDER BY used_at DESC`, string(code))
	if err != nil {
		return nil, transient("query usage events", err)
	}
	defer rows.Close()

	var events []referral.UsageEvent
	for rows.Next() {
		var ev referral.UsageEvent
		var codeStr, userStr, usedAt string
		if err := rows.Scan(&ev.ID, &codeStr, &userStr, &usedAt); err != nil {
			return nil, transient("query usage events", err)
		}
		ev.Code = referral.Code(codeStr)
		ev.UserID = referral.UserID(userStr)
		ev.UsedAt, err = time.Parse(time.RFC3339Nano, usedAt)
		if err != nil {
			return nil, fmt.Errorf("parse used_at: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("query usage events", err)
	}
	return events, nil
}

// CountAll returns the total number of usage events.
func (s *Store) CountAll(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_events`).Scan(&n); err != nil {
		return 0, transient("count usage events", err)
	}
	return n, nil
}

// Reset clears all data. Administrative/test use only; the engine never
// calls this.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"usage_events", "referral_codes"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return transient("reset", err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCode(row rowScanner) (*referral.ReferralCode, error) {
	var rc referral.ReferralCode
	var codeStr, createdBy, createdAt string
	var active int
	var expiresAt sql.NullString

	err := row.Scan(&codeStr, &rc.UsageLimit, &rc.UsedCount, &active, &createdBy, &createdAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	rc.Code = referral.Code(codeStr)
	rc.Active = active != 0
	rc.CreatedBy = referral.UserID(createdBy)
	rc.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if expiresAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
		rc.ExpiresAt = &t
	}
	return &rc, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// transient wraps driver-level failures so callers can match the
// retryable sentinel with errors.Is.
func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, referral.ErrStorageUnavailable, err)
}
