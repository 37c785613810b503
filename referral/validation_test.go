package referral_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/referral-engine/referral"
	"github.com/warp/referral-engine/referral/store"
)

// countingStore counts Get calls so tests can assert that the format
// gate short-circuits before any storage read.
type countingStore struct {
	referral.CodeStore
	gets int
}

func (c *countingStore) Get(ctx context.Context, code referral.Code) (*referral.ReferralCode, error) {
	c.gets++
	return c.CodeStore.Get(ctx, code)
}

// =============================================================================
// FORMAT TESTS
// =============================================================================

func TestValidator_BadFormat_NoStorageRead(t *testing.T) {
	// GIVEN: Codes that violate the fixed 8-char A-Z0-9 format
	// WHEN: Validating
	// THEN: ErrBadFormat without touching storage

	counting := &countingStore{CodeStore: store.NewMemory()}
	v := referral.NewValidator(counting)
	ctx := context.Background()

	for _, code := range []string{
		"SHORT",      // too short
		"WAYTOOLONG", // too long
		"lower123",   // lowercase
		"HAS SPCE",   // whitespace
		"DASH-AB1",   // punctuation
		"",           // empty
	} {
		_, err := v.Check(ctx, code)
		assert.ErrorIs(t, err, referral.ErrBadFormat, "code %q", code)
	}

	assert.Zero(t, counting.gets, "format failures must not read storage")
}

func TestValidFormat(t *testing.T) {
	assert.True(t, referral.ValidFormat("ABCD1234"))
	assert.True(t, referral.ValidFormat("00000000"))
	assert.True(t, referral.ValidFormat("ZZZZZZZZ"))
	assert.False(t, referral.ValidFormat("ABCD123"))
	assert.False(t, referral.ValidFormat("ABCD12345"))
}

// =============================================================================
// BUSINESS RULE TESTS
// =============================================================================

func TestValidator_UnknownCode(t *testing.T) {
	v := referral.NewValidator(store.NewMemory())

	_, err := v.Check(context.Background(), "NOSUCH00")
	assert.ErrorIs(t, err, referral.ErrCodeNotFound)
}

func TestValidator_ValidCode_ReportsRemaining(t *testing.T) {
	mem := store.NewMemory()
	v := referral.NewValidator(mem)
	ctx := context.Background()

	code := mustGenerate(t, mem, 5)

	rc, err := v.Check(ctx, string(code))
	require.NoError(t, err)
	assert.Equal(t, 5, rc.Remaining())
}

func TestValidator_Idempotent_WithoutRedemption(t *testing.T) {
	// Validating twice without an intervening redemption must report
	// identical remaining uses.
	mem := store.NewMemory()
	v := referral.NewValidator(mem)
	ctx := context.Background()

	code := mustGenerate(t, mem, 3)

	first, err := v.Check(ctx, string(code))
	require.NoError(t, err)
	second, err := v.Check(ctx, string(code))
	require.NoError(t, err)

	assert.Equal(t, first.Remaining(), second.Remaining())
}

func TestValidator_InactiveCode(t *testing.T) {
	mem := store.NewMemory()
	v := referral.NewValidator(mem)
	ctx := context.Background()

	code := mustGenerate(t, mem, 5)
	require.NoError(t, mem.Deactivate(ctx, code))

	_, err := v.Check(ctx, string(code))
	assert.ErrorIs(t, err, referral.ErrCodeInactive)
}

func TestValidator_ExpiredCode(t *testing.T) {
	mem := store.NewMemory()
	v := referral.NewValidator(mem)
	ctx := context.Background()

	expiry := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	rc := referral.ReferralCode{
		Code:       "WILLEXP1",
		UsageLimit: 5,
		Active:     true,
		CreatedBy:  "admin-1",
		CreatedAt:  expiry.Add(-24 * time.Hour),
		ExpiresAt:  &expiry,
	}
	require.NoError(t, mem.InsertIfAbsent(ctx, rc))

	// Before expiry: valid
	v.Now = func() time.Time { return expiry.Add(-time.Minute) }
	_, err := v.Check(ctx, "WILLEXP1")
	assert.NoError(t, err)

	// After expiry: rejected regardless of active flag and capacity
	v.Now = func() time.Time { return expiry.Add(time.Minute) }
	_, err = v.Check(ctx, "WILLEXP1")
	assert.ErrorIs(t, err, referral.ErrCodeExpired)
}

func TestValidator_ExhaustedCode_RegardlessOfActiveFlag(t *testing.T) {
	// GIVEN: A record at the limit whose active flag was never cleared
	//        (e.g. written by an older system, or a crash mid-bookkeeping)
	// WHEN: Validating
	// THEN: Limit-reached; capacity is checked independently of the flag

	mem := store.NewMemory()
	v := referral.NewValidator(mem)
	ctx := context.Background()

	rc := referral.ReferralCode{
		Code:       "STALEFLG",
		UsageLimit: 2,
		UsedCount:  2,
		Active:     true, // inconsistent with capacity
		CreatedBy:  "admin-1",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, mem.InsertIfAbsent(ctx, rc))

	_, err := v.Check(ctx, "STALEFLG")
	assert.ErrorIs(t, err, referral.ErrLimitReached)
}
