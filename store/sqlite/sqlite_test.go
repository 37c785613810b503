package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/referral-engine/referral"
	"github.com/warp/referral-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testCode(code string, limit int) referral.ReferralCode {
	return referral.ReferralCode{
		Code:       referral.Code(code),
		UsageLimit: limit,
		Active:     true,
		CreatedBy:  "admin-1",
		CreatedAt:  time.Date(2026, time.February, 1, 10, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// CODE STORE TESTS
// =============================================================================

func TestStore_InsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expiry := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	rc := testCode("ABCD1234", 5)
	rc.ExpiresAt = &expiry
	require.NoError(t, store.InsertIfAbsent(ctx, rc))

	got, err := store.Get(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, rc.Code, got.Code)
	assert.Equal(t, 5, got.UsageLimit)
	assert.Equal(t, 0, got.UsedCount)
	assert.True(t, got.Active)
	assert.Equal(t, referral.UserID("admin-1"), got.CreatedBy)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expiry))
}

func TestStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "NOSUCH00")
	assert.ErrorIs(t, err, referral.ErrCodeNotFound)
}

func TestStore_InsertIfAbsent_Duplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertIfAbsent(ctx, testCode("ABCD1234", 1)))
	err := store.InsertIfAbsent(ctx, testCode("ABCD1234", 3))
	assert.ErrorIs(t, err, referral.ErrDuplicateCode)
}

func TestStore_ConsumeSlot_IncrementsAndDeactivatesAtLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, testCode("ABCD1234", 2)))

	first, err := store.ConsumeSlot(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, 1, first.UsedCount)
	assert.True(t, first.Active)

	second, err := store.ConsumeSlot(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, 2, second.UsedCount)
	assert.False(t, second.Active, "active clears in the same write that hits the limit")

	_, err = store.ConsumeSlot(ctx, "ABCD1234")
	assert.ErrorIs(t, err, referral.ErrLimitReached)
}

func TestStore_ConsumeSlot_UnknownCode(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ConsumeSlot(context.Background(), "NOSUCH00")
	assert.ErrorIs(t, err, referral.ErrCodeNotFound)
}

func TestStore_ConsumeSlot_ConcurrentContention(t *testing.T) {
	// GIVEN: A code with limit 3
	// WHEN: 10 goroutines hit the conditional update concurrently
	// THEN: Exactly 3 writes commit; used_count never exceeds the limit

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, testCode("ABCD1234", 3)))

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.ConsumeSlot(ctx, "ABCD1234")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, referral.ErrLimitReached)
		}
	}
	assert.Equal(t, 3, successes)

	rc, err := store.Get(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, 3, rc.UsedCount)
	assert.False(t, rc.Active)
}

func TestStore_Deactivate_ForwardOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, testCode("ABCD1234", 5)))

	require.NoError(t, store.Deactivate(ctx, "ABCD1234"))

	rc, err := store.Get(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.False(t, rc.Active)

	err = store.Deactivate(ctx, "ABCD1234")
	assert.ErrorIs(t, err, referral.ErrCodeInactive)

	err = store.Deactivate(ctx, "NOSUCH00")
	assert.ErrorIs(t, err, referral.ErrCodeNotFound)
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, testCode("AAAA1111", 1)))
	require.NoError(t, store.InsertIfAbsent(ctx, testCode("BBBB2222", 2)))

	codes, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, codes, 2)
}

// =============================================================================
// USAGE LOG TESTS
// =============================================================================

func TestStore_UsageLog_AppendAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, testCode("ABCD1234", 5)))

	base := time.Date(2026, time.February, 2, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"ev-1", "ev-2", "ev-3"} {
		ev := referral.UsageEvent{
			ID:     id,
			Code:   "ABCD1234",
			UserID: "user-1",
			UsedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.Append(ctx, ev))
	}

	events, err := store.ByCode(ctx, "ABCD1234")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "ev-3", events[0].ID, "newest first")
	assert.Equal(t, "ev-1", events[2].ID)

	count, err := store.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertIfAbsent(ctx, testCode("ABCD1234", 5)))
	require.NoError(t, store.Append(ctx, referral.UsageEvent{
		ID: "ev-1", Code: "ABCD1234", UserID: "user-1", UsedAt: time.Now(),
	}))

	require.NoError(t, store.Reset(ctx))

	_, err := store.Get(ctx, "ABCD1234")
	assert.ErrorIs(t, err, referral.ErrCodeNotFound)

	count, err := store.CountAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// =============================================================================
// ENGINE INTEGRATION
// =============================================================================

func TestStore_LedgerEndToEnd(t *testing.T) {
	// The full redeem path against the production store.
	store := newTestStore(t)
	ctx := context.Background()

	gen := referral.NewGenerator(store)
	ledger := referral.NewLedger(store, store)
	analytics := referral.NewAnalytics(store, store)

	rc, err := gen.Generate(ctx, 2, "admin-1", nil)
	require.NoError(t, err)

	_, err = ledger.Redeem(ctx, string(rc.Code), "user-1")
	require.NoError(t, err)
	_, err = ledger.Redeem(ctx, string(rc.Code), "user-2")
	require.NoError(t, err)
	_, err = ledger.Redeem(ctx, string(rc.Code), "user-3")
	assert.ErrorIs(t, err, referral.ErrLimitReached)

	summary, err := analytics.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalCodes)
	assert.Equal(t, 2, summary.TotalUses)
	assert.Zero(t, summary.ActiveCount)
}
