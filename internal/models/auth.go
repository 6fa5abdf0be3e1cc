package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// HasuraClaimsNamespace is the claims key the data store's authorization
// layer reads role assertions from.
const HasuraClaimsNamespace = "https://hasura.io/jwt/claims"

// HasuraClaims is the role-claims block embedded in every session token
type HasuraClaims struct {
	AllowedRoles []string `json:"x-hasura-allowed-roles"`
	DefaultRole  string   `json:"x-hasura-default-role"`
	Role         string   `json:"x-hasura-role"`
	UserID       string   `json:"x-hasura-user-id"`
}

// SessionTokenClaims is the full payload of a minted session token.
// It deliberately excludes any previously minted token to prevent
// recursive embedding.
type SessionTokenClaims struct {
	Hasura HasuraClaims `json:"https://hasura.io/jwt/claims"`
	jwt.RegisteredClaims
}

// Identity is the long-lived identity the session pipeline starts from.
// Explicit struct instead of an untyped session blob: required fields are
// plain values, optional ones are pointers.
type Identity struct {
	UserID          string
	Email           string
	Name            string
	InvalidateCache bool // forces a profile re-fetch on next enrichment
}

// Session is what the enrichment pipeline materializes on every session
// check. DataFresh is false when the profile fetch failed and the session
// carries stale or missing profile data.
type Session struct {
	UserID    string
	Email     string
	Name      string
	Token     string // minted claims token for the data store
	DataFresh bool
	DataError string
}
