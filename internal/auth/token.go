package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spokehq/gearvault/internal/models"
)

// ClaimsTokenManager mints and validates the signed claims tokens consumed by
// the data store's role-based access control. Tokens are recomputed on every
// session materialization and never persisted.
type ClaimsTokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewClaimsTokenManager creates a claims token manager with a symmetric
// signing secret.
func NewClaimsTokenManager(secret string, expiry time.Duration) *ClaimsTokenManager {
	return &ClaimsTokenManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// MintSessionToken constructs a signed claims payload for the subject. The
// role block is fixed: every authenticated subject acts as "user" against the
// data store. The payload never embeds a previously minted token.
func (tm *ClaimsTokenManager) MintSessionToken(userID string) (string, error) {
	now := time.Now()

	claims := &models.SessionTokenClaims{
		Hasura: models.HasuraClaims{
			AllowedRoles: []string{"user"},
			DefaultRole:  "user",
			Role:         "user",
			UserID:       userID,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies a session token and returns its claims
func (tm *ClaimsTokenManager) ValidateToken(tokenString string) (*models.SessionTokenClaims, error) {
	claims := &models.SessionTokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("invalid token: missing subject")
	}

	return claims, nil
}
