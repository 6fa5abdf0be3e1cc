package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spokehq/gearvault/internal/auth"
	"github.com/spokehq/gearvault/internal/models"
	"github.com/spokehq/gearvault/internal/services"
	pkghttp "github.com/spokehq/gearvault/pkg/http"
	pkglogger "github.com/spokehq/gearvault/pkg/logger"
)

// MFAHandler handles MFA enrollment, verification, and recovery requests
type MFAHandler struct {
	mfaService *services.MFAService
	audit      *pkglogger.AuditLogger
	logger     *slog.Logger
}

// NewMFAHandler creates a new MFA handler
func NewMFAHandler(mfaService *services.MFAService, audit *pkglogger.AuditLogger, logger *slog.Logger) *MFAHandler {
	return &MFAHandler{
		mfaService: mfaService,
		audit:      audit,
		logger:     logger,
	}
}

// Setup handles POST /mfa/setup
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	setup, err := h.mfaService.InitiateSetup(r.Context(), user.Subject)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMFAAlreadyEnabled):
			pkghttp.WriteBadRequest(w, "MFA is already enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			h.logger.Error("failed to initiate MFA setup", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Setup failed")
		}
		return
	}

	h.audit.Log(pkglogger.AuditEvent{
		EventType: "mfa_setup_initiated",
		UserID:    user.Subject,
		Success:   true,
	})

	pkghttp.WriteJSON(w, http.StatusOK, MFASetupResponse{
		Secret:    setup.Secret,
		QRCodeURL: setup.QRCodeURL,
		Message:   "Scan the QR code with your authenticator app, then confirm with a code",
	})
}

// Enable handles POST /mfa/enable
func (h *MFAHandler) Enable(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req MFAEnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, "verificationCode must be 6 digits")
		return
	}

	backupCodes, err := h.mfaService.Enable(r.Context(), user.Subject, req.VerificationCode)
	if err != nil {
		h.audit.Log(pkglogger.AuditEvent{
			EventType:     "mfa_enable",
			UserID:        user.Subject,
			Success:       false,
			FailureReason: auditReason(err),
		})

		switch {
		case errors.Is(err, models.ErrMFAInvalidCode):
			pkghttp.WriteBadRequest(w, "Invalid verification code")
		case errors.Is(err, models.ErrMFANoPendingSetup):
			pkghttp.WriteBadRequest(w, "No pending MFA setup")
		case errors.Is(err, models.ErrMFAAlreadyEnabled):
			pkghttp.WriteBadRequest(w, "MFA is already enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			h.logger.Error("failed to enable MFA", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Enable failed")
		}
		return
	}

	h.audit.Log(pkglogger.AuditEvent{
		EventType: "mfa_enable",
		UserID:    user.Subject,
		Success:   true,
	})

	pkghttp.WriteJSON(w, http.StatusOK, MFAEnableResponse{
		Success:     true,
		BackupCodes: backupCodes,
		Message:     "MFA enabled. Store these backup codes securely; they will not be shown again",
	})
}

// Disable handles POST /mfa/disable
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req MFADisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request")
		return
	}
	if req.VerificationCode == "" && req.BackupCode == "" {
		pkghttp.WriteBadRequest(w, "A verification code or backup code is required")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid code format")
		return
	}

	err := h.mfaService.Disable(r.Context(), user.Subject, req.VerificationCode, req.BackupCode)
	if err != nil {
		h.audit.Log(pkglogger.AuditEvent{
			EventType:     "mfa_disable",
			UserID:        user.Subject,
			Success:       false,
			FailureReason: auditReason(err),
		})

		switch {
		case errors.Is(err, models.ErrMFAInvalidCode):
			pkghttp.WriteBadRequest(w, "Invalid code")
		case errors.Is(err, models.ErrMFANotEnabled):
			pkghttp.WriteBadRequest(w, "MFA is not enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			h.logger.Error("failed to disable MFA", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Disable failed")
		}
		return
	}

	h.audit.Log(pkglogger.AuditEvent{
		EventType: "mfa_disable",
		UserID:    user.Subject,
		Success:   true,
	})

	pkghttp.WriteJSON(w, http.StatusOK, MFADisableResponse{
		Success: true,
		Message: "MFA has been disabled",
	})
}

// RegenerateBackupCodes handles POST /mfa/backup-codes
func (h *MFAHandler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req MFARegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, "verificationCode must be 6 digits")
		return
	}

	backupCodes, err := h.mfaService.RegenerateBackupCodes(r.Context(), user.Subject, req.VerificationCode)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMFAInvalidCode):
			pkghttp.WriteBadRequest(w, "Invalid verification code")
		case errors.Is(err, models.ErrMFANotEnabled):
			pkghttp.WriteBadRequest(w, "MFA is not enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			h.logger.Error("failed to regenerate backup codes", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Regeneration failed")
		}
		return
	}

	h.audit.Log(pkglogger.AuditEvent{
		EventType: "mfa_backup_codes_regenerated",
		UserID:    user.Subject,
		Success:   true,
	})

	pkghttp.WriteJSON(w, http.StatusOK, MFARegenerateResponse{
		Success:     true,
		BackupCodes: backupCodes,
		Message:     "New backup codes generated. Previous codes no longer work",
	})
}

// Status handles GET /mfa/status
func (h *MFAHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	status, err := h.mfaService.Status(r.Context(), user.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		h.logger.Error("failed to get MFA status", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to retrieve MFA status")
		return
	}

	resp := MFAStatusResponse{
		MFAEnabled:             status.MFAEnabled,
		TOTPConfigured:         status.TOTPConfigured,
		WebauthnEnabled:        status.WebauthnEnabled,
		BackupCodesCount:       status.BackupCodesCount,
		BackupCodesGeneratedAt: status.BackupCodesGeneratedAt,
		Authenticators:         make([]AuthenticatorDTO, len(status.Authenticators)),
	}
	for i, a := range status.Authenticators {
		resp.Authenticators[i] = AuthenticatorDTO{
			ID:        a.ID,
			Name:      a.Name,
			CreatedAt: a.CreatedAt,
			LastUsed:  a.LastUsed,
		}
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// auditReason maps service errors to stable audit reason strings
func auditReason(err error) string {
	switch {
	case errors.Is(err, models.ErrMFAInvalidCode):
		return "invalid_code"
	case errors.Is(err, models.ErrMFANoPendingSetup):
		return "no_pending_setup"
	case errors.Is(err, models.ErrMFAAlreadyEnabled):
		return "already_enabled"
	case errors.Is(err, models.ErrMFANotEnabled):
		return "not_enabled"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
