package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/spokehq/gearvault/internal/models"
	"github.com/spokehq/gearvault/internal/services"
	pkghttp "github.com/spokehq/gearvault/pkg/http"
)

// SessionRequest carries the identity established by the sign-in flow. The
// invalidateCache flag forces a profile refetch even when the existing
// session already has user data.
type SessionRequest struct {
	UserID          string `json:"userId" validate:"required,uuid"`
	Email           string `json:"email" validate:"omitempty,email"`
	Name            string `json:"name"`
	InvalidateCache bool   `json:"invalidateCache"`
}

// SessionResponse is the materialized session handed back to the caller
type SessionResponse struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Token     string `json:"token"`
	DataFresh bool   `json:"dataFresh"`
	DataError string `json:"dataError,omitempty"`
}

// SessionHandler materializes sessions for the sign-in callback. The
// endpoint is internal-only and gated by a shared secret header rather than
// a session token, since it is what mints session tokens in the first place.
type SessionHandler struct {
	sessionService *services.SessionService
	internalSecret string
	logger         *slog.Logger
}

func NewSessionHandler(sessionService *services.SessionService, internalSecret string, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		internalSecret: internalSecret,
		logger:         logger,
	}
}

// Materialize handles POST /auth/session
func (h *SessionHandler) Materialize(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get("X-Internal-Secret")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.internalSecret)) != 1 {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	identity := models.Identity{
		UserID:          req.UserID,
		Email:           req.Email,
		Name:            req.Name,
		InvalidateCache: req.InvalidateCache,
	}

	// The callback may carry a previously materialized session; when it does,
	// the email and name double as the existing session data.
	var existing *models.Session
	if req.Email != "" || req.Name != "" {
		existing = &models.Session{UserID: req.UserID, Email: req.Email, Name: req.Name}
	}

	session, err := h.sessionService.Materialize(r.Context(), identity, existing)
	if err != nil {
		h.logger.Error("session materialization failed",
			slog.String("user_id", req.UserID),
			slog.Any("error", err),
		)
		pkghttp.WriteInternalError(w, "Failed to create session")
		return
	}

	if !session.DataFresh {
		h.logger.Warn("session issued with stale user data",
			slog.String("user_id", session.UserID),
			slog.String("data_error", session.DataError),
		)
	}

	pkghttp.WriteJSON(w, http.StatusOK, SessionResponse{
		UserID:    session.UserID,
		Email:     session.Email,
		Name:      session.Name,
		Token:     session.Token,
		DataFresh: session.DataFresh,
		DataError: session.DataError,
	})
}
