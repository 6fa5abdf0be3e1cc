package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"

	"github.com/spokehq/gearvault/internal/models"
)

const (
	// BackupCodeHashCost is the bcrypt cost for backup code hashes
	BackupCodeHashCost = 12

	// backupCodeGroupLen is the length of each human-readable group (XXXX-XXXX)
	backupCodeGroupLen = 4

	// backupCodeCharset excludes ambiguous characters (0/O, 1/I/L)
	backupCodeCharset = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
)

// TOTPManager generates TOTP secrets, verifies time-based codes, and manages
// one-time backup recovery codes.
type TOTPManager struct {
	issuer string
}

// NewTOTPManager creates a TOTP manager. The issuer appears in the
// provisioning URI shown by authenticator apps.
func NewTOTPManager(issuer string) *TOTPManager {
	return &TOTPManager{issuer: issuer}
}

// GenerateSecret creates a fresh TOTP seed with a provisioning URI and a QR
// code PNG data URL for setup. Pure generation, no I/O.
func (tm *TOTPManager) GenerateSecret(email string) (*models.MFASetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: email,
		SecretSize:  20,
		Period:      30,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	qr, err := qrcode.New(key.URL(), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(200)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &models.MFASetup{
		Secret:     key.Secret(),
		OtpauthURL: key.URL(),
		QRCodeURL:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// VerifyCode validates a 6-digit TOTP code against a secret.
// Allows ±1 time step for clock drift.
func (tm *TOTPManager) VerifyCode(code, secret string) bool {
	if !IsTOTPCode(code) {
		return false
	}

	valid, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}

// GeneratedBackupCode pairs a plaintext recovery code with its stored hash.
// The plaintext is returned exactly once to the caller for display and never
// persisted.
type GeneratedBackupCode struct {
	Code string
	Hash string
}

// GenerateBackupCodes draws count random codes in XXXX-XXXX format and
// bcrypt-hashes each for storage.
func (tm *TOTPManager) GenerateBackupCodes(count int) ([]GeneratedBackupCode, error) {
	codes := make([]GeneratedBackupCode, count)
	for i := 0; i < count; i++ {
		code, err := randomBackupCode()
		if err != nil {
			return nil, err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(code), BackupCodeHashCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash backup code: %w", err)
		}

		codes[i] = GeneratedBackupCode{Code: code, Hash: string(hash)}
	}
	return codes, nil
}

// VerifyBackupCode checks a plaintext code against a stored hash. Invalid
// format is rejected before comparison; a valid-format non-matching code
// returns false with no distinct error, so callers cannot tell which check
// failed.
func (tm *TOTPManager) VerifyBackupCode(code, hash string) bool {
	code = NormalizeBackupCode(code)
	if !IsBackupCode(code) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// randomBackupCode draws cryptographically secure random bytes and formats
// them as two unambiguous 4-character groups.
func randomBackupCode() (string, error) {
	raw := make([]byte, 2*backupCodeGroupLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	chars := make([]byte, len(raw))
	for i, b := range raw {
		chars[i] = backupCodeCharset[int(b)%len(backupCodeCharset)]
	}
	return string(chars[:backupCodeGroupLen]) + "-" + string(chars[backupCodeGroupLen:]), nil
}

// NormalizeBackupCode uppercases a code and restores the group separator so
// user input with or without the dash verifies the same way.
func NormalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	stripped := strings.ReplaceAll(code, "-", "")
	if len(stripped) == 2*backupCodeGroupLen {
		return stripped[:backupCodeGroupLen] + "-" + stripped[backupCodeGroupLen:]
	}
	return code
}

// IsTOTPCode reports whether s looks like a 6-digit TOTP code
func IsTOTPCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// IsBackupCode reports whether s is in XXXX-XXXX format over the backup code
// charset.
func IsBackupCode(s string) bool {
	if len(s) != 2*backupCodeGroupLen+1 || s[backupCodeGroupLen] != '-' {
		return false
	}
	for i, c := range s {
		if i == backupCodeGroupLen {
			continue
		}
		if !strings.ContainsRune(backupCodeCharset, c) {
			return false
		}
	}
	return true
}
