package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/spokehq/gearvault/internal/auth"
	"github.com/spokehq/gearvault/internal/limiter"
	"github.com/spokehq/gearvault/internal/models"
	pkghttp "github.com/spokehq/gearvault/pkg/http"
	pkglogger "github.com/spokehq/gearvault/pkg/logger"
)

// RateLimitCheckRequest asks whether an auth attempt may proceed
type RateLimitCheckRequest struct {
	Email string `json:"email" validate:"required,email"`
	Type  string `json:"type" validate:"required"`
}

// RateLimitCheckResponse is the limiter's decision. The reason never reveals
// whether the block is IP- or email-keyed.
type RateLimitCheckResponse struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// AttemptReportRequest records the real outcome of an auth attempt. The
// client IP travels in the body because the reporting backend, not the end
// user, makes this call.
type AttemptReportRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Type     string `json:"type" validate:"required"`
	ClientIP string `json:"clientIp" validate:"required,ip"`
	Success  bool   `json:"success"`
}

// AttemptReportResponse acknowledges a recorded attempt
type AttemptReportResponse struct {
	Recorded bool `json:"recorded"`
}

// RateLimitHandler handles pre-auth rate limit checks and attempt outcome
// reports. Check is public: the frontend calls it before login, registration,
// and email-existence probes. Report is internal-only, gated by the shared
// secret, because it writes attempt outcomes into the limiter.
type RateLimitHandler struct {
	attempts       limiter.AuthAttemptLimiter
	timing         *auth.TimingDelay
	ipConfig       *pkghttp.IPConfig
	internalSecret string
	audit          *pkglogger.AuditLogger
	logger         *slog.Logger
}

// NewRateLimitHandler creates a new rate limit handler
func NewRateLimitHandler(
	attempts limiter.AuthAttemptLimiter,
	timing *auth.TimingDelay,
	ipConfig *pkghttp.IPConfig,
	internalSecret string,
	audit *pkglogger.AuditLogger,
	logger *slog.Logger,
) *RateLimitHandler {
	return &RateLimitHandler{
		attempts:       attempts,
		timing:         timing,
		ipConfig:       ipConfig,
		internalSecret: internalSecret,
		audit:          audit,
		logger:         logger,
	}
}

// Check handles POST /auth/rate-limit
func (h *RateLimitHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req RateLimitCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, "email and a valid type are required")
		return
	}
	attemptType := models.AttemptType(req.Type)
	if !attemptType.Valid() {
		pkghttp.WriteBadRequest(w, "email and a valid type are required")
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)

	var decision models.LimitDecision
	var err error
	if attemptType == models.AttemptEmailCheck {
		decision, err = h.attempts.CanCheckEmail(r.Context(), ip, req.Email)
	} else {
		decision, err = h.attempts.CanAttemptAuth(r.Context(), ip, req.Email, attemptType)
	}
	if err != nil {
		h.logger.Error("rate limit check failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Rate limit check failed")
		return
	}

	// An email-existence probe is the attempt itself, so an allowed check is
	// recorded immediately. Login and registration outcomes arrive later
	// through Report; counting their pre-checks here would throttle users
	// who never failed an authentication.
	if attemptType == models.AttemptEmailCheck && decision.Allowed {
		if recErr := h.attempts.RecordAttempt(r.Context(), ip, req.Email, attemptType, true); recErr != nil {
			h.logger.Error("failed to record email check", slog.Any("error", recErr))
		}
	}

	// Pad the response so blocked and allowed checks take similar time
	h.timing.Wait(decision.Allowed)

	if !decision.Allowed {
		h.audit.Log(pkglogger.AuditEvent{
			EventType:     "auth_rate_limited",
			IPAddress:     ip,
			Success:       false,
			FailureReason: "rate_limited",
			Metadata: map[string]string{
				"email": pkglogger.SanitizedEmail(req.Email),
				"type":  req.Type,
			},
		})

		pkghttp.WriteJSON(w, http.StatusTooManyRequests, RateLimitCheckResponse{
			Allowed:    false,
			Reason:     decision.Reason,
			RetryAfter: decision.RetryAfter,
		})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, RateLimitCheckResponse{Allowed: true})
}

// Report handles POST /auth/attempt. The sign-in flow calls it after each
// login or registration attempt with the actual outcome; failed attempts are
// what the per-email ceiling counts.
func (h *RateLimitHandler) Report(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get("X-Internal-Secret")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.internalSecret)) != 1 {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req AttemptReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	attemptType := models.AttemptType(req.Type)
	// Email-check probes record themselves at check time
	if !attemptType.Valid() || attemptType == models.AttemptEmailCheck {
		pkghttp.WriteBadRequest(w, "type must be login or registration")
		return
	}

	if err := h.attempts.RecordAttempt(r.Context(), req.ClientIP, req.Email, attemptType, req.Success); err != nil {
		h.logger.Error("failed to record auth attempt", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to record attempt")
		return
	}

	if !req.Success {
		h.audit.Log(pkglogger.AuditEvent{
			EventType:     "auth_attempt_failed",
			IPAddress:     req.ClientIP,
			Success:       false,
			FailureReason: "auth_failed",
			Metadata: map[string]string{
				"email": pkglogger.SanitizedEmail(req.Email),
				"type":  req.Type,
			},
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, AttemptReportResponse{Recorded: true})
}
