package handlers

import "time"

// MFA setup DTOs

// MFASetupResponse is returned once when setup is initiated. The secret is
// never exposed again after this response.
type MFASetupResponse struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qrCodeUrl"`
	Message   string `json:"message"`
}

// MFAEnableRequest carries the first TOTP code to confirm enrollment
type MFAEnableRequest struct {
	VerificationCode string `json:"verificationCode" validate:"required,len=6,numeric"`
}

// MFAEnableResponse confirms enablement and carries the one-time plaintext
// backup codes.
type MFAEnableResponse struct {
	Success     bool     `json:"success"`
	BackupCodes []string `json:"backupCodes"`
	Message     string   `json:"message"`
}

// MFADisableRequest requires proof of possession: a current TOTP code or an
// unused backup code.
type MFADisableRequest struct {
	VerificationCode string `json:"verificationCode,omitempty" validate:"omitempty,len=6,numeric"`
	BackupCode       string `json:"backupCode,omitempty" validate:"omitempty,max=16"`
}

// MFADisableResponse confirms disablement
type MFADisableResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MFARegenerateRequest carries the TOTP code authorizing code regeneration
type MFARegenerateRequest struct {
	VerificationCode string `json:"verificationCode" validate:"required,len=6,numeric"`
}

// MFARegenerateResponse carries the fresh one-time plaintext backup codes
type MFARegenerateResponse struct {
	Success     bool     `json:"success"`
	BackupCodes []string `json:"backupCodes"`
	Message     string   `json:"message"`
}

// MFAStatusResponse shows current MFA configuration without exposing the
// secret or code hashes.
type MFAStatusResponse struct {
	MFAEnabled             bool               `json:"mfaEnabled"`
	TOTPConfigured         bool               `json:"totpConfigured"`
	WebauthnEnabled        bool               `json:"webauthnEnabled"`
	BackupCodesCount       int                `json:"backupCodesCount"`
	BackupCodesGeneratedAt *time.Time         `json:"backupCodesGeneratedAt"`
	Authenticators         []AuthenticatorDTO `json:"authenticators"`
}

// AuthenticatorDTO is registered hardware authenticator metadata
type AuthenticatorDTO struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	LastUsed  *time.Time `json:"lastUsed"`
}
