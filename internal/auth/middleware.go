package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/spokehq/gearvault/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing session claims in context
	UserContextKey contextKey = "user"
)

// Middleware validates Bearer session tokens and injects claims into context.
// Failures are surfaced as a generic 401 with no detail on the cause.
func Middleware(tm *ClaimsTokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeUnauthorized(w)
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"Unauthorized"}`))
}

// GetUserFromContext extracts session claims injected by Middleware.
// Returns nil when the request is unauthenticated.
func GetUserFromContext(r *http.Request) *models.SessionTokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.SessionTokenClaims)
	if !ok {
		return nil
	}
	return claims
}
