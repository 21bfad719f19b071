package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/BradenHooton/sentinel/internal/guard"
	pkghttp "github.com/BradenHooton/sentinel/pkg/http"
)

// GuardHandler exposes the attempt governor to the login surface.
type GuardHandler struct {
	governor *guard.Governor
	ipConfig *pkghttp.IPConfig
}

// NewGuardHandler creates a new GuardHandler.
func NewGuardHandler(governor *guard.Governor, ipConfig *pkghttp.IPConfig) *GuardHandler {
	return &GuardHandler{governor: governor, ipConfig: ipConfig}
}

// Request DTOs

// AttemptRequest identifies the login identity an attempt concerns.
type AttemptRequest struct {
	Identity string `json:"identity" validate:"required,min=1,max=254"`
}

// CheckResponse reports whether an attempt may proceed.
type CheckResponse struct {
	Allowed           bool   `json:"allowed"`
	State             string `json:"state"`
	RequiresChallenge bool   `json:"requires_challenge"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
	Message           string `json:"message,omitempty"`
}

// AttemptStateResponse summarizes identity state after recording an outcome.
type AttemptStateResponse struct {
	State             string `json:"state"`
	AttemptCount      int    `json:"attempt_count"`
	RequiresChallenge bool   `json:"requires_challenge"`
	IsBlocked         bool   `json:"is_blocked"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
	Message           string `json:"message,omitempty"`
}

// Check decides whether a login attempt may proceed. The caller presents
// the challenge when requires_challenge is set and surfaces the lockout
// message when the attempt is denied.
func (h *GuardHandler) Check(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAttempt(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	allowed := h.governor.CanAttemptLogin(ctx, req.Identity)

	resp := CheckResponse{
		Allowed:           allowed,
		State:             string(h.governor.StateFor(ctx, req.Identity)),
		RequiresChallenge: h.governor.RequiresChallenge(ctx, req.Identity),
	}
	if !allowed {
		if remaining := h.governor.GetTimeRemaining(ctx, req.Identity); remaining > 0 {
			resp.RetryAfterSeconds = int64(remaining.Seconds())
			resp.Message = "Account temporarily locked. Try again in " +
				h.governor.FormatTimeRemaining(ctx, req.Identity) + "."
		} else {
			resp.Message = "Login attempts are temporarily suspended."
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Failure records a failed login attempt.
func (h *GuardHandler) Failure(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAttempt(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	h.governor.RecordFailedAttempt(ctx, req.Identity)

	state := h.governor.IdentityState(ctx, req.Identity)
	resp := AttemptStateResponse{
		State:             string(h.governor.StateFor(ctx, req.Identity)),
		AttemptCount:      state.AttemptCount,
		RequiresChallenge: state.RequiresChallenge,
		IsBlocked:         state.IsBlocked,
	}
	if remaining := h.governor.GetTimeRemaining(ctx, req.Identity); remaining > 0 {
		resp.RetryAfterSeconds = int64(remaining.Seconds())
		resp.Message = "Account locked. Try again in " +
			h.governor.FormatTimeRemaining(ctx, req.Identity) + "."
	}

	writeJSON(w, http.StatusOK, resp)
}

// Success records a successful login, clearing attempt history.
func (h *GuardHandler) Success(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAttempt(w, r)
	if !ok {
		return
	}

	h.governor.RecordSuccessfulLogin(r.Context(), req.Identity)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Lockout reports the remaining lockout window for an identity.
func (h *GuardHandler) Lockout(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		pkghttp.WriteBadRequest(w, "identity query parameter is required")
		return
	}

	ctx := r.Context()
	remaining := h.governor.GetTimeRemaining(ctx, identity)

	writeJSON(w, http.StatusOK, map[string]any{
		"retry_after_seconds": int64(remaining.Seconds()),
		"formatted":           h.governor.FormatTimeRemaining(ctx, identity),
	})
}

func (h *GuardHandler) decodeAttempt(w http.ResponseWriter, r *http.Request) (AttemptRequest, bool) {
	var req AttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return req, false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return req, false
	}
	req.Identity = guard.NormalizeIdentity(req.Identity)
	return req, true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
