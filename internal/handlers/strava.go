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

// StravaConnectRequest carries the OAuth authorization code
type StravaConnectRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state"`
}

// StravaConnectResponse confirms the connection
type StravaConnectResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StravaHandler handles the Strava OAuth lifecycle endpoints
type StravaHandler struct {
	stravaService *services.StravaService
	audit         *pkglogger.AuditLogger
	logger        *slog.Logger
}

// NewStravaHandler creates a new Strava handler
func NewStravaHandler(stravaService *services.StravaService, audit *pkglogger.AuditLogger, logger *slog.Logger) *StravaHandler {
	return &StravaHandler{
		stravaService: stravaService,
		audit:         audit,
		logger:        logger,
	}
}

// Status handles GET /strava/status
func (h *StravaHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	status, err := h.stravaService.Status(r.Context(), user.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		h.logger.Error("failed to get strava status", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to retrieve status")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// Bikes handles GET /strava/bikes
func (h *StravaHandler) Bikes(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	result, err := h.stravaService.Bikes(r.Context(), user.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		h.logger.Error("failed to fetch strava bikes", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to retrieve bikes")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Connect handles POST /strava/connect
func (h *StravaHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req StravaConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, "code is required")
		return
	}

	if err := h.stravaService.Connect(r.Context(), user.Subject, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Authorization code could not be exchanged")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			h.logger.Error("failed to connect strava", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Connect failed")
		}
		return
	}

	h.audit.Log(pkglogger.AuditEvent{
		EventType: "strava_connected",
		UserID:    user.Subject,
		Success:   true,
	})

	pkghttp.WriteJSON(w, http.StatusOK, StravaConnectResponse{
		Success: true,
		Message: "Strava account connected",
	})
}

// Disconnect handles POST /strava/disconnect
func (h *StravaHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.stravaService.Disconnect(r.Context(), user.Subject); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		h.logger.Error("failed to disconnect strava", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Disconnect failed")
		return
	}

	h.audit.Log(pkglogger.AuditEvent{
		EventType: "strava_disconnected",
		UserID:    user.Subject,
		Success:   true,
	})

	pkghttp.WriteJSON(w, http.StatusOK, StravaConnectResponse{
		Success: true,
		Message: "Strava account disconnected",
	})
}
