package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/spokehq/gearvault/internal/auth"
	"github.com/spokehq/gearvault/internal/handlers"
	"github.com/spokehq/gearvault/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	tokenManager *auth.ClaimsTokenManager,
	sessionHandler *handlers.SessionHandler,
	rateLimitHandler *handlers.RateLimitHandler,
	mfaHandler *handlers.MFAHandler,
	stravaHandler *handlers.StravaHandler,
) {
	// Rate limiting config for public auth endpoints
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no session token required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/rate-limit", rateLimitHandler.Check)

	// Internal routes - gated by shared secret inside the handler, not by
	// session tokens: one mints the tokens, the other feeds the limiter
	router.Post("/auth/session", sessionHandler.Materialize)
	router.Post("/auth/attempt", rateLimitHandler.Report)

	// Protected routes - valid session token required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Post("/mfa/setup", mfaHandler.Setup)
		r.Post("/mfa/enable", mfaHandler.Enable)
		r.Post("/mfa/disable", mfaHandler.Disable)
		r.Post("/mfa/backup-codes", mfaHandler.RegenerateBackupCodes)
		r.Get("/mfa/status", mfaHandler.Status)

		r.Get("/strava/status", stravaHandler.Status)
		r.Get("/strava/bikes", stravaHandler.Bikes)
		r.Post("/strava/connect", stravaHandler.Connect)
		r.Post("/strava/disconnect", stravaHandler.Disconnect)
	})
}
