package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTOTPManager_GenerateSecret(t *testing.T) {
	tm := NewTOTPManager("GearVault")

	setup, err := tm.GenerateSecret("rider@example.com")

	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OtpauthURL, "otpauth://totp/")
	assert.Contains(t, setup.OtpauthURL, "GearVault")
	assert.Contains(t, setup.OtpauthURL, "rider@example.com")
	assert.True(t, strings.HasPrefix(setup.QRCodeURL, "data:image/png;base64,"))
}

func TestTOTPManager_GenerateSecret_UniquePerCall(t *testing.T) {
	tm := NewTOTPManager("GearVault")

	first, err := tm.GenerateSecret("rider@example.com")
	require.NoError(t, err)
	second, err := tm.GenerateSecret("rider@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, first.Secret, second.Secret)
}

func TestTOTPManager_VerifyCode_RoundTrip(t *testing.T) {
	tm := NewTOTPManager("GearVault")
	setup, err := tm.GenerateSecret("rider@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	assert.True(t, tm.VerifyCode(code, setup.Secret))
}

func TestTOTPManager_VerifyCode_AllowsOneStepDrift(t *testing.T) {
	tm := NewTOTPManager("GearVault")
	setup, err := tm.GenerateSecret("rider@example.com")
	require.NoError(t, err)

	previous, err := totp.GenerateCode(setup.Secret, time.Now().Add(-30*time.Second))
	require.NoError(t, err)

	assert.True(t, tm.VerifyCode(previous, setup.Secret))
}

func TestTOTPManager_VerifyCode_Rejections(t *testing.T) {
	tm := NewTOTPManager("GearVault")
	setup, err := tm.GenerateSecret("rider@example.com")
	require.NoError(t, err)

	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"too short", "12345"},
		{"too long", "1234567"},
		{"non-numeric", "12a456"},
		{"far drift", mustCode(t, setup.Secret, time.Now().Add(-5*time.Minute))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tm.VerifyCode(tt.code, setup.Secret))
		})
	}
}

func mustCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	require.NoError(t, err)
	return code
}

func TestTOTPManager_GenerateBackupCodes(t *testing.T) {
	tm := NewTOTPManager("GearVault")

	codes, err := tm.GenerateBackupCodes(8)

	require.NoError(t, err)
	require.Len(t, codes, 8)

	seen := make(map[string]bool)
	for _, gc := range codes {
		assert.True(t, IsBackupCode(gc.Code), "code %q not in XXXX-XXXX format", gc.Code)
		assert.False(t, seen[gc.Code], "duplicate backup code %q", gc.Code)
		seen[gc.Code] = true

		assert.NotContains(t, gc.Code, "0")
		assert.NotContains(t, gc.Code, "O")
		assert.NotContains(t, gc.Code, "1")
		assert.NotContains(t, gc.Code, "I")
		assert.NotContains(t, gc.Code, "L")

		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(gc.Hash), []byte(gc.Code)))
	}
}

func TestTOTPManager_VerifyBackupCode(t *testing.T) {
	tm := NewTOTPManager("GearVault")
	hash, err := bcrypt.GenerateFromPassword([]byte("ABCD-EFGH"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, tm.VerifyBackupCode("ABCD-EFGH", string(hash)))
	assert.True(t, tm.VerifyBackupCode("abcd-efgh", string(hash)), "lowercase input normalizes")
	assert.True(t, tm.VerifyBackupCode("ABCDEFGH", string(hash)), "dash-less input normalizes")
	assert.True(t, tm.VerifyBackupCode("  ABCD-EFGH  ", string(hash)), "surrounding whitespace trimmed")

	assert.False(t, tm.VerifyBackupCode("ABCD-EFGJ", string(hash)))
	assert.False(t, tm.VerifyBackupCode("", string(hash)))
	assert.False(t, tm.VerifyBackupCode("not a code", string(hash)))
}

func TestNormalizeBackupCode(t *testing.T) {
	assert.Equal(t, "ABCD-EFGH", NormalizeBackupCode("abcd-efgh"))
	assert.Equal(t, "ABCD-EFGH", NormalizeBackupCode("ABCDEFGH"))
	assert.Equal(t, "ABCD-EFGH", NormalizeBackupCode(" abcdefgh "))
	// Wrong lengths pass through untouched
	assert.Equal(t, "ABC", NormalizeBackupCode("abc"))
}

func TestIsTOTPCode(t *testing.T) {
	assert.True(t, IsTOTPCode("123456"))
	assert.False(t, IsTOTPCode("12345"))
	assert.False(t, IsTOTPCode("1234567"))
	assert.False(t, IsTOTPCode("12345a"))
	assert.False(t, IsTOTPCode(""))
}

func TestIsBackupCode(t *testing.T) {
	assert.True(t, IsBackupCode("ABCD-EFGH"))
	assert.True(t, IsBackupCode("2345-6789"))
	assert.False(t, IsBackupCode("ABCDEFGH"))
	assert.False(t, IsBackupCode("ABCD EFGH"))
	assert.False(t, IsBackupCode("AB1D-EFGH"), "charset excludes 1")
	assert.False(t, IsBackupCode("abcd-efgh"), "lowercase is not canonical form")
}
