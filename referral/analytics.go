/*
analytics.go - Derived statistics over codes and usage history

PURPOSE:
  Read-only aggregation across the code collection and the usage log.
  Nothing here is stored; every number is recomputed from the records,
  so analytics can never drift from the ledger.

ACTIVE SEMANTICS:
  A code counts as active when UsedCount < UsageLimit. Capacity, not
  the Active flag, is the source of truth - the flag can lag if the
  process crashes between the conditional write and later bookkeeping.

SEE ALSO:
  - store.go: List and ByCode used here
*/
package referral

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AGGREGATE TYPES
// =============================================================================

// Summary is the system-wide view.
type Summary struct {
	TotalCodes  int
	TotalUses   int
	ActiveCount int
}

// CodeDetail is the per-code view.
type CodeDetail struct {
	Code       Code
	UsageRate  decimal.Decimal
	UsedCount  int
	UsageLimit int
	CreatedAt  time.Time

	// History is ordered by UsedAt descending.
	History []UsageEvent
}

// =============================================================================
// ANALYTICS
// =============================================================================

// Analytics derives statistics from the code store and usage log.
type Analytics struct {
	Store CodeStore
	Usage UsageLog
}

// NewAnalytics creates an aggregator over the given collaborators.
func NewAnalytics(store CodeStore, usage UsageLog) *Analytics {
	return &Analytics{Store: store, Usage: usage}
}

// Summary scans all codes and counts total codes, total recorded uses,
// and codes with remaining capacity.
func (a *Analytics) Summary(ctx context.Context) (Summary, error) {
	codes, err := a.Store.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	uses, err := a.Usage.CountAll(ctx)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{TotalCodes: len(codes), TotalUses: uses}
	for _, rc := range codes {
		if !rc.Exhausted() {
			s.ActiveCount++
		}
	}
	return s, nil
}

// Detail returns per-code statistics and the full usage history for a
// code. Returns ErrCodeNotFound for unknown codes.
func (a *Analytics) Detail(ctx context.Context, code Code) (*CodeDetail, error) {
	rc, err := a.Store.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	history, err := a.Usage.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	return &CodeDetail{
		Code:       rc.Code,
		UsageRate:  usageRate(rc.UsedCount, rc.UsageLimit),
		UsedCount:  rc.UsedCount,
		UsageLimit: rc.UsageLimit,
		CreatedAt:  rc.CreatedAt,
		History:    history,
	}, nil
}

// usageRate computes used/limit exactly. A zero limit yields zero;
// limits are otherwise constrained positive at creation.
func usageRate(used, limit int) decimal.Decimal {
	if limit == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(used)).Div(decimal.NewFromInt(int64(limit)))
}
