/*
generator.go - Unique referral-code generation

PURPOSE:
  Produces unpredictable, fixed-format codes and persists them with
  insert-if-absent semantics. 36^8 possibilities make collisions
  negligible but not impossible, so a uniqueness violation triggers a
  regenerate-and-retry loop with a bounded budget.

RANDOM SOURCE:
  crypto/rand with rejection-free sampling via math/big, so every
  character is uniform over the 36-symbol alphabet.

SEE ALSO:
  - types.go: CodeLength, CodeAlphabet
  - store.go: InsertIfAbsent contract
*/
package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// maxGenerateAttempts bounds the collision retry loop.
const maxGenerateAttempts = 5

// =============================================================================
// GENERATOR
// =============================================================================

// Generator creates and persists new referral codes.
type Generator struct {
	Store CodeStore

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewGenerator creates a generator backed by the given store.
func NewGenerator(store CodeStore) *Generator {
	return &Generator{Store: store, Now: time.Now}
}

// Generate creates a new code with the given usage limit and persists it.
// expiresAt may be nil for codes that never expire. On a code collision
// the generator retries with a fresh code, up to maxGenerateAttempts,
// then fails with ErrGenerationExhausted.
func (g *Generator) Generate(ctx context.Context, usageLimit int, createdBy UserID, expiresAt *time.Time) (*ReferralCode, error) {
	if usageLimit <= 0 {
		return nil, ErrInvalidUsageLimit
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := NewCode()
		if err != nil {
			return nil, err
		}

		rc := ReferralCode{
			Code:       code,
			UsageLimit: usageLimit,
			UsedCount:  0,
			Active:     true,
			CreatedBy:  createdBy,
			CreatedAt:  g.now(),
			ExpiresAt:  expiresAt,
		}

		err = g.Store.InsertIfAbsent(ctx, rc)
		if err == nil {
			return &rc, nil
		}
		if errors.Is(err, ErrDuplicateCode) {
			continue // collision, regenerate
		}
		return nil, err
	}

	return nil, ErrGenerationExhausted
}

// NewCode samples a fresh code: CodeLength characters uniform over
// CodeAlphabet, from a cryptographically strong source.
func NewCode() (Code, error) {
	alphabetSize := big.NewInt(int64(len(CodeAlphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = CodeAlphabet[n.Int64()]
	}
	return Code(buf), nil
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}
