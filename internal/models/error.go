package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// MFA state errors
	ErrMFAAlreadyEnabled = errors.New("mfa is already enabled")
	ErrMFANotEnabled     = errors.New("mfa is not enabled")
	ErrMFANoPendingSetup = errors.New("no pending mfa setup")
	ErrMFAInvalidCode    = errors.New("invalid mfa code")

	// Rate limiting errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrStoreRateLimited is set by the store client when the backing data
	// store rejects a request for quota reasons. Callers branch on this kind
	// rather than inspecting error text.
	ErrStoreRateLimited = errors.New("data store rate limited")

	// ErrStravaNotConnected indicates no Strava token pair is stored for the user
	ErrStravaNotConnected = errors.New("strava account not connected")
)
