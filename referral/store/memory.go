// Package store provides CodeStore and UsageLog implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/referral-engine/referral"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements referral.CodeStore and referral.UsageLog in memory.
// The conditional consume runs under the write lock, which gives the
// same atomicity the production store gets from its guarded UPDATE.
type Memory struct {
	mu     sync.RWMutex
	codes  map[referral.Code]referral.ReferralCode
	events map[referral.Code][]referral.UsageEvent
	total  int
}

func NewMemory() *Memory {
	return &Memory{
		codes:  make(map[referral.Code]referral.ReferralCode),
		events: make(map[referral.Code][]referral.UsageEvent),
	}
}

// Get returns a copy of the record for a code.
func (m *Memory) Get(_ context.Context, code referral.Code) (*referral.ReferralCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rc, ok := m.codes[code]
	if !ok {
		return nil, referral.ErrCodeNotFound
	}
	out := rc
	return &out, nil
}

// InsertIfAbsent persists a new record, rejecting duplicates.
func (m *Memory) InsertIfAbsent(_ context.Context, rc referral.ReferralCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.codes[rc.Code]; exists {
		return referral.ErrDuplicateCode
	}
	m.codes[rc.Code] = rc
	return nil
}

// ConsumeSlot checks capacity and increments under the write lock.
func (m *Memory) ConsumeSlot(_ context.Context, code referral.Code) (*referral.ReferralCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rc, ok := m.codes[code]
	if !ok {
		return nil, referral.ErrCodeNotFound
	}
	if rc.UsedCount >= rc.UsageLimit {
		return nil, referral.ErrLimitReached
	}

	rc.UsedCount++
	if rc.UsedCount >= rc.UsageLimit {
		rc.Active = false
	}
	m.codes[code] = rc

	out := rc
	return &out, nil
}

// Deactivate flips Active to false. Forward-only.
func (m *Memory) Deactivate(_ context.Context, code referral.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rc, ok := m.codes[code]
	if !ok {
		return referral.ErrCodeNotFound
	}
	if !rc.Active {
		return referral.ErrCodeInactive
	}
	rc.Active = false
	m.codes[code] = rc
	return nil
}

// List returns copies of all records.
func (m *Memory) List(_ context.Context) ([]referral.ReferralCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]referral.ReferralCode, 0, len(m.codes))
	for _, rc := range m.codes {
		out = append(out, rc)
	}
	return out, nil
}

// =============================================================================
// USAGE LOG
// =============================================================================

// Append records one usage event. Append-only.
func (m *Memory) Append(_ context.Context, ev referral.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[ev.Code] = append(m.events[ev.Code], ev)
	m.total++
	return nil
}

// ByCode returns events for a code ordered by UsedAt descending.
func (m *Memory) ByCode(_ context.Context, code referral.Code) ([]referral.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]referral.UsageEvent, len(m.events[code]))
	copy(out, m.events[code])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UsedAt.After(out[j].UsedAt)
	})
	return out, nil
}

// CountAll returns the total number of recorded events.
func (m *Memory) CountAll(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total, nil
}

// Reset clears all state. Dev and test use only.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.codes = make(map[referral.Code]referral.ReferralCode)
	m.events = make(map[referral.Code][]referral.UsageEvent)
	m.total = 0
}
