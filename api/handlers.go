/*
handlers.go - HTTP API handlers for the referral engine

PURPOSE:
  Exposes the referral engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Referral:
    POST /api/referral/generate           Create a new code (auth)
    POST /api/referral/validate           Check a code without consuming it
    POST /api/referral/use                Redeem one usage slot
    GET  /api/referral/stats              System-wide summary (auth)
    GET  /api/referral/stats/{code}       Per-code analytics (auth)
    POST /api/referral/{code}/deactivate  Retire a code (auth)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (generator, ledger, analytics)
  4. Serialize response
  5. Map typed errors to status codes

ERROR HANDLING:
  Business-rule rejections are 4xx with structured bodies; 5xx is
  reserved for storage and unexpected failures (503 when storage
  retries are exhausted).

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - auth.go: Bearer-token middleware for protected routes
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/referral-engine/referral"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Generator *referral.Generator
	Validator *referral.Validator
	Ledger    *referral.Ledger
	Analytics *referral.Analytics
}

// NewHandler wires the engine components over one store + usage log.
func NewHandler(store referral.CodeStore, usage referral.UsageLog) *Handler {
	return &Handler{
		Generator: referral.NewGenerator(store),
		Validator: referral.NewValidator(store),
		Ledger:    referral.NewLedger(store, usage),
		Analytics: referral.NewAnalytics(store, usage),
	}
}

// =============================================================================
// REFERRAL HANDLERS
// =============================================================================

// Generate creates a new referral code for the authenticated caller.
// POST /api/referral/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", referral.ErrUnauthorized)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UsageLimit == 0 {
		req.UsageLimit = 1 // single-use by default
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expires_at format (use RFC3339)", err)
			return
		}
		expiresAt = &t
	}

	rc, err := h.Generator.Generate(r.Context(), req.UsageLimit, identity.UserID, expiresAt)
	if err != nil {
		if errors.Is(err, referral.ErrInvalidUsageLimit) {
			writeError(w, http.StatusBadRequest, "Usage limit must be positive", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to generate code", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCodeDTO(rc))
}

// Validate checks a code against its current state. Read-only.
// POST /api/referral/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, ValidateResponse{Valid: false, Message: "Code is required"})
		return
	}

	rc, err := h.Validator.Check(r.Context(), req.Code)
	if err != nil {
		if referral.IsRejection(err) {
			writeJSON(w, http.StatusBadRequest, ValidateResponse{Valid: false, Message: rejectionMessage(err)})
			return
		}
		writeError(w, storageStatus(err), "Failed to validate code", err)
		return
	}

	writeJSON(w, http.StatusOK, ValidateResponse{Valid: true, RemainingUses: rc.Remaining()})
}

// Use redeems one usage slot for a user.
// POST /api/referral/use
func (h *Handler) Use(w http.ResponseWriter, r *http.Request) {
	var req UseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Code == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "Code and user_id are required", nil)
		return
	}

	_, err := h.Ledger.Redeem(r.Context(), req.Code, referral.UserID(req.UserID))
	if err != nil {
		if referral.IsRejection(err) {
			writeError(w, http.StatusBadRequest, rejectionMessage(err), nil)
			return
		}
		writeError(w, storageStatus(err), "Failed to use code", err)
		return
	}

	writeJSON(w, http.StatusOK, UseResponse{Success: true})
}

// Deactivate explicitly retires a code.
// POST /api/referral/{code}/deactivate
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	err := h.Ledger.Deactivate(r.Context(), code)
	if err != nil {
		switch {
		case referral.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Code not found", nil)
		case referral.IsRejection(err):
			writeError(w, http.StatusBadRequest, rejectionMessage(err), nil)
		default:
			writeError(w, storageStatus(err), "Failed to deactivate code", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, UseResponse{Success: true})
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// Stats returns the system-wide summary.
// GET /api/referral/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Analytics.Summary(r.Context())
	if err != nil {
		writeError(w, storageStatus(err), "Failed to get statistics", err)
		return
	}

	writeJSON(w, http.StatusOK, StatsDTO{
		TotalCodes:  summary.TotalCodes,
		TotalUses:   summary.TotalUses,
		ActiveCount: summary.ActiveCount,
	})
}

// CodeStats returns per-code analytics with usage history.
// GET /api/referral/stats/{code}
func (h *Handler) CodeStats(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	detail, err := h.Analytics.Detail(r.Context(), referral.Code(code))
	if err != nil {
		if referral.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Code not found", nil)
			return
		}
		writeError(w, storageStatus(err), "Failed to get analytics", err)
		return
	}

	writeJSON(w, http.StatusOK, toCodeStatsDTO(detail))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// rejectionMessage maps typed rejections to the client-facing wording.
func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, referral.ErrBadFormat):
		return "Invalid code format"
	case errors.Is(err, referral.ErrCodeNotFound):
		return "Invalid code"
	case errors.Is(err, referral.ErrCodeInactive):
		return "Code is inactive"
	case errors.Is(err, referral.ErrCodeExpired):
		return "Code has expired"
	case errors.Is(err, referral.ErrLimitReached):
		return "Code has reached its usage limit"
	default:
		return err.Error()
	}
}

// storageStatus picks 503 for exhausted storage retries, 500 otherwise.
func storageStatus(err error) int {
	if errors.Is(err, referral.ErrStorageUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
