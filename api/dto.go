/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the core, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/referral-engine/referral"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// GenerateRequest creates a new referral code.
type GenerateRequest struct {
	UsageLimit int `json:"usage_limit"`

	// ExpiresAt is optional, RFC3339. Empty means never expires.
	ExpiresAt string `json:"expires_at,omitempty"`
}

// ValidateRequest checks a code without consuming it.
type ValidateRequest struct {
	Code string `json:"code"`
}

// UseRequest redeems one usage slot.
type UseRequest struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// CodeDTO represents a freshly generated code.
type CodeDTO struct {
	Code       string `json:"code"`
	UsageLimit int    `json:"usage_limit"`
	UsedCount  int    `json:"used_count"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

// ValidateResponse reports whether a code is redeemable.
type ValidateResponse struct {
	Valid         bool   `json:"valid"`
	RemainingUses int    `json:"remaining_uses,omitempty"`
	Message       string `json:"message,omitempty"`
}

// UseResponse reports a redemption outcome.
type UseResponse struct {
	Success bool `json:"success"`
}

// StatsDTO is the system-wide summary.
type StatsDTO struct {
	TotalCodes  int `json:"total_codes"`
	TotalUses   int `json:"total_uses"`
	ActiveCount int `json:"active_count"`
}

// CodeStatsDTO is the per-code analytics view.
type CodeStatsDTO struct {
	Code         string          `json:"code"`
	UsageRate    float64         `json:"usage_rate"`
	UsedCount    int             `json:"used_count"`
	UsageLimit   int             `json:"usage_limit"`
	CreatedAt    string          `json:"created_at"`
	UsageHistory []UsageEventDTO `json:"usage_history"`
}

// UsageEventDTO is one redemption in a code's history.
type UsageEventDTO struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
	UsedAt string `json:"used_at"`
}

// ErrorResponse is the structured failure body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCodeDTO(rc *referral.ReferralCode) CodeDTO {
	dto := CodeDTO{
		Code:       string(rc.Code),
		UsageLimit: rc.UsageLimit,
		UsedCount:  rc.UsedCount,
	}
	if rc.ExpiresAt != nil {
		dto.ExpiresAt = rc.ExpiresAt.Format(time.RFC3339)
	}
	return dto
}

func toCodeStatsDTO(d *referral.CodeDetail) CodeStatsDTO {
	history := make([]UsageEventDTO, len(d.History))
	for i, ev := range d.History {
		history[i] = UsageEventDTO{
			Code:   string(ev.Code),
			UserID: string(ev.UserID),
			UsedAt: ev.UsedAt.Format(time.RFC3339),
		}
	}
	return CodeStatsDTO{
		Code:         string(d.Code),
		UsageRate:    d.UsageRate.InexactFloat64(),
		UsedCount:    d.UsedCount,
		UsageLimit:   d.UsageLimit,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
		UsageHistory: history,
	}
}
