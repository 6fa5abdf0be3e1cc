package models

import (
	"time"
)

// BackupCode represents a single-use recovery code stored in the data store.
// Only the bcrypt hash is ever persisted; once UsedAt is set the code can
// never again satisfy a verification check.
type BackupCode struct {
	ID        string
	UserID    string
	CodeHash  string
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsUsed reports whether the code has been consumed or invalidated
func (c *BackupCode) IsUsed() bool {
	return c.UsedAt != nil
}

// MFAStatus aggregates a user's MFA configuration for the status endpoint.
// Never carries the secret or code hashes.
type MFAStatus struct {
	MFAEnabled             bool
	TOTPConfigured         bool
	WebauthnEnabled        bool
	BackupCodesCount       int
	BackupCodesGeneratedAt *time.Time
	Authenticators         []AuthenticatorInfo
}

// AuthenticatorInfo describes a registered hardware authenticator (metadata only)
type AuthenticatorInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used"`
}

// MFASetup is returned once when setup is initiated; the secret is never
// exposed again after this response.
type MFASetup struct {
	Secret     string
	OtpauthURL string
	QRCodeURL  string
}
