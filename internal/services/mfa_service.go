package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/spokehq/gearvault/internal/auth"
	"github.com/spokehq/gearvault/internal/models"
)

// UserRepository is the data-store surface the services need for user records
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetPendingMFASecret(ctx context.Context, userID, secret string) error
	EnableMFA(ctx context.Context, userID string, codeHashes []string, now time.Time) error
	DisableMFA(ctx context.Context, userID string, now time.Time) error
	ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string, now time.Time) error
	UpdateStravaTokens(ctx context.Context, userID string, pair *models.StravaTokenPair) error
	ClearStravaTokens(ctx context.Context, userID string) error
}

// BackupCodeRepository reads backup codes and authenticator metadata
type BackupCodeRepository interface {
	ListUnused(ctx context.Context, userID string) ([]models.BackupCode, error)
	MarkUsed(ctx context.Context, codeID string, now time.Time) error
	ListAuthenticators(ctx context.Context, userID string) ([]models.AuthenticatorInfo, error)
}

// SecurityNotifier sends best-effort security notification emails
type SecurityNotifier interface {
	NotifySecurityEvent(ctx context.Context, email, subject, body string)
}

// MFAService orchestrates the MFA enrollment state machine:
// disabled -> pending_setup -> enabled -> disabled. No state is skippable.
type MFAService struct {
	userRepo UserRepository
	codeRepo BackupCodeRepository
	totpMgr  *auth.TOTPManager
	notifier SecurityNotifier
	logger   *slog.Logger
	config   MFAConfig
}

// MFAConfig holds MFA configuration
type MFAConfig struct {
	BackupCodeCount int
}

// NewMFAService creates a new MFA service
func NewMFAService(
	userRepo UserRepository,
	codeRepo BackupCodeRepository,
	totpMgr *auth.TOTPManager,
	notifier SecurityNotifier,
	logger *slog.Logger,
	config MFAConfig,
) *MFAService {
	if config.BackupCodeCount <= 0 {
		config.BackupCodeCount = 8
	}
	return &MFAService{
		userRepo: userRepo,
		codeRepo: codeRepo,
		totpMgr:  totpMgr,
		notifier: notifier,
		logger:   logger,
		config:   config,
	}
}

// InitiateSetup moves disabled -> pending_setup. Generates a fresh secret and
// persists it with MFA still disabled. Re-invoking overwrites the pending
// secret, so half-finished setups never stack.
func (s *MFAService) InitiateSetup(ctx context.Context, userID string) (*models.MFASetup, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, models.ErrMFAAlreadyEnabled
	}

	setup, err := s.totpMgr.GenerateSecret(user.Email)
	if err != nil {
		s.logger.Error("failed to generate TOTP secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.userRepo.SetPendingMFASecret(ctx, userID, setup.Secret); err != nil {
		if err == models.ErrNotFound {
			return nil, err
		}
		s.logger.Error("failed to persist pending secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("MFA setup initiated", slog.String("user_id", userID))
	return setup, nil
}

// Enable moves pending_setup -> enabled. Requires a valid 6-digit code
// against the pending secret. On success a fresh batch of backup codes is
// generated; their hashes and the enabled flag are persisted in one store
// mutation, and the plaintext codes are returned exactly once.
func (s *MFAService) Enable(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, models.ErrMFAAlreadyEnabled
	}
	if !user.HasPendingMFASetup() {
		return nil, models.ErrMFANoPendingSetup
	}

	if !s.totpMgr.VerifyCode(code, *user.MFASecret) {
		s.logger.Warn("invalid TOTP code during enable", slog.String("user_id", userID))
		return nil, models.ErrMFAInvalidCode
	}

	generated, err := s.totpMgr.GenerateBackupCodes(s.config.BackupCodeCount)
	if err != nil {
		s.logger.Error("failed to generate backup codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashes := make([]string, len(generated))
	plaintext := make([]string, len(generated))
	for i, gc := range generated {
		hashes[i] = gc.Hash
		plaintext[i] = gc.Code
	}

	if err := s.userRepo.EnableMFA(ctx, userID, hashes, time.Now()); err != nil {
		if err == models.ErrNotFound {
			return nil, err
		}
		s.logger.Error("failed to enable MFA", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("MFA enabled", slog.String("user_id", userID))
	s.notifier.NotifySecurityEvent(ctx, user.Email,
		"Two-factor authentication enabled",
		"Two-factor authentication was enabled on your account. If this wasn't you, secure your account immediately.")

	return plaintext, nil
}

// Disable moves enabled -> disabled. Requires proof of possession: a valid
// current TOTP code, or failing that, a valid unused backup code. The store
// mutation marks every backup code used and clears the MFA fields in a
// single transaction.
func (s *MFAService) Disable(ctx context.Context, userID, totpCode, backupCode string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled {
		return models.ErrMFANotEnabled
	}

	ok, usedCodeID := s.verifyProof(ctx, user, totpCode, backupCode)
	if !ok {
		s.logger.Warn("invalid proof for MFA disable", slog.String("user_id", userID))
		return models.ErrMFAInvalidCode
	}

	// Burn the consumed backup code first so it cannot verify again even if
	// the disable mutation fails partway through.
	if usedCodeID != "" {
		if err := s.codeRepo.MarkUsed(ctx, usedCodeID, time.Now()); err != nil {
			s.logger.Error("failed to mark backup code used",
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
			return models.ErrInternalServer
		}
	}

	if err := s.userRepo.DisableMFA(ctx, userID, time.Now()); err != nil {
		if err == models.ErrNotFound {
			return err
		}
		s.logger.Error("failed to disable MFA", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("MFA disabled", slog.String("user_id", userID))
	s.notifier.NotifySecurityEvent(ctx, user.Email,
		"Two-factor authentication disabled",
		"Two-factor authentication was disabled on your account. If this wasn't you, secure your account immediately.")

	return nil
}

// verifyProof checks the TOTP code first; only if that fails does it scan
// the unused backup codes, short-circuiting on the first match. When a backup
// code satisfied the check, the matched code's ID is returned so the caller
// can mark it used. Callers see a single boolean regardless of which check
// failed.
func (s *MFAService) verifyProof(ctx context.Context, user *models.User, totpCode, backupCode string) (bool, string) {
	if totpCode != "" && user.MFASecret != nil && s.totpMgr.VerifyCode(totpCode, *user.MFASecret) {
		return true, ""
	}

	if backupCode == "" {
		return false, ""
	}

	codes, err := s.codeRepo.ListUnused(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to list backup codes", slog.Any("error", err))
		return false, ""
	}
	for _, c := range codes {
		if s.totpMgr.VerifyBackupCode(backupCode, c.CodeHash) {
			return true, c.ID
		}
	}
	return false, ""
}

// RegenerateBackupCodes replaces all unused backup codes with a fresh batch.
// Requires MFA enabled and a valid current TOTP code. Invalidation and
// insertion happen in one store mutation.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.MFAEnabled || user.MFASecret == nil {
		return nil, models.ErrMFANotEnabled
	}

	if !s.totpMgr.VerifyCode(code, *user.MFASecret) {
		s.logger.Warn("invalid TOTP code during backup code regeneration", slog.String("user_id", userID))
		return nil, models.ErrMFAInvalidCode
	}

	generated, err := s.totpMgr.GenerateBackupCodes(s.config.BackupCodeCount)
	if err != nil {
		s.logger.Error("failed to generate backup codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashes := make([]string, len(generated))
	plaintext := make([]string, len(generated))
	for i, gc := range generated {
		hashes[i] = gc.Hash
		plaintext[i] = gc.Code
	}

	if err := s.userRepo.ReplaceBackupCodes(ctx, userID, hashes, time.Now()); err != nil {
		if err == models.ErrNotFound {
			return nil, err
		}
		s.logger.Error("failed to replace backup codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("backup codes regenerated", slog.String("user_id", userID))
	s.notifier.NotifySecurityEvent(ctx, user.Email,
		"Recovery codes regenerated",
		"A new set of recovery codes was generated for your account. Previous codes no longer work.")

	return plaintext, nil
}

// Status returns the read-only MFA aggregation for a user. Never exposes the
// secret or code hashes.
func (s *MFAService) Status(ctx context.Context, userID string) (*models.MFAStatus, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	codes, err := s.codeRepo.ListUnused(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list backup codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	authenticators, err := s.codeRepo.ListAuthenticators(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list authenticators", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if authenticators == nil {
		authenticators = []models.AuthenticatorInfo{}
	}

	return &models.MFAStatus{
		MFAEnabled:             user.MFAEnabled,
		TOTPConfigured:         user.MFASecret != nil && *user.MFASecret != "",
		WebauthnEnabled:        user.WebauthnEnabled,
		BackupCodesCount:       len(codes),
		BackupCodesGeneratedAt: user.BackupCodesGeneratedAt,
		Authenticators:         authenticators,
	}, nil
}
