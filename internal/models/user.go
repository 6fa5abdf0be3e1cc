package models

import (
	"time"
)

// User is the auth-relevant slice of the user record held in the data store.
// The wider application owns the rest of the profile (bikes, parts, units).
type User struct {
	ID                     string
	Email                  string
	Name                   string
	MFAEnabled             bool
	MFASecret              *string // TOTP seed; set during pending setup and while enabled
	BackupCodesGeneratedAt *time.Time
	WebauthnEnabled        bool // informational, managed elsewhere
	StravaAccessToken      *string
	StravaRefreshToken     *string
	StravaExpiresAt        *int64 // epoch seconds
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// HasPendingMFASetup reports whether a secret was generated but not yet verified
func (u *User) HasPendingMFASetup() bool {
	return !u.MFAEnabled && u.MFASecret != nil && *u.MFASecret != ""
}

// StravaConnected reports whether a token pair is stored for the user
func (u *User) StravaConnected() bool {
	return u.StravaAccessToken != nil && *u.StravaAccessToken != ""
}
