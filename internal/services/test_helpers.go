package services

import (
	"context"
	"time"

	"github.com/spokehq/gearvault/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc             func(ctx context.Context, id string) (*models.User, error)
	SetPendingMFASecretFunc func(ctx context.Context, userID, secret string) error
	EnableMFAFunc           func(ctx context.Context, userID string, codeHashes []string, now time.Time) error
	DisableMFAFunc          func(ctx context.Context, userID string, now time.Time) error
	ReplaceBackupCodesFunc  func(ctx context.Context, userID string, codeHashes []string, now time.Time) error
	UpdateStravaTokensFunc  func(ctx context.Context, userID string, pair *models.StravaTokenPair) error
	ClearStravaTokensFunc   func(ctx context.Context, userID string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) SetPendingMFASecret(ctx context.Context, userID, secret string) error {
	if m.SetPendingMFASecretFunc != nil {
		return m.SetPendingMFASecretFunc(ctx, userID, secret)
	}
	return nil
}

func (m *MockUserRepository) EnableMFA(ctx context.Context, userID string, codeHashes []string, now time.Time) error {
	if m.EnableMFAFunc != nil {
		return m.EnableMFAFunc(ctx, userID, codeHashes, now)
	}
	return nil
}

func (m *MockUserRepository) DisableMFA(ctx context.Context, userID string, now time.Time) error {
	if m.DisableMFAFunc != nil {
		return m.DisableMFAFunc(ctx, userID, now)
	}
	return nil
}

func (m *MockUserRepository) ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string, now time.Time) error {
	if m.ReplaceBackupCodesFunc != nil {
		return m.ReplaceBackupCodesFunc(ctx, userID, codeHashes, now)
	}
	return nil
}

func (m *MockUserRepository) UpdateStravaTokens(ctx context.Context, userID string, pair *models.StravaTokenPair) error {
	if m.UpdateStravaTokensFunc != nil {
		return m.UpdateStravaTokensFunc(ctx, userID, pair)
	}
	return nil
}

func (m *MockUserRepository) ClearStravaTokens(ctx context.Context, userID string) error {
	if m.ClearStravaTokensFunc != nil {
		return m.ClearStravaTokensFunc(ctx, userID)
	}
	return nil
}

// MockBackupCodeRepository implements BackupCodeRepository for testing
type MockBackupCodeRepository struct {
	ListUnusedFunc         func(ctx context.Context, userID string) ([]models.BackupCode, error)
	MarkUsedFunc           func(ctx context.Context, codeID string, now time.Time) error
	ListAuthenticatorsFunc func(ctx context.Context, userID string) ([]models.AuthenticatorInfo, error)
}

func (m *MockBackupCodeRepository) ListUnused(ctx context.Context, userID string) ([]models.BackupCode, error) {
	if m.ListUnusedFunc != nil {
		return m.ListUnusedFunc(ctx, userID)
	}
	return []models.BackupCode{}, nil
}

func (m *MockBackupCodeRepository) MarkUsed(ctx context.Context, codeID string, now time.Time) error {
	if m.MarkUsedFunc != nil {
		return m.MarkUsedFunc(ctx, codeID, now)
	}
	return nil
}

func (m *MockBackupCodeRepository) ListAuthenticators(ctx context.Context, userID string) ([]models.AuthenticatorInfo, error) {
	if m.ListAuthenticatorsFunc != nil {
		return m.ListAuthenticatorsFunc(ctx, userID)
	}
	return []models.AuthenticatorInfo{}, nil
}

// MockNotifier records security notifications for testing
type MockNotifier struct {
	Events []MockNotification
}

type MockNotification struct {
	Email   string
	Subject string
}

func (m *MockNotifier) NotifySecurityEvent(_ context.Context, email, subject, _ string) {
	m.Events = append(m.Events, MockNotification{Email: email, Subject: subject})
}

// MockStravaClient implements StravaClient for testing
type MockStravaClient struct {
	IsTokenValidFunc func(ctx context.Context, accessToken string) bool
	RefreshFunc      func(ctx context.Context, refreshToken string) *models.StravaTokenPair
	ExchangeFunc     func(ctx context.Context, code string) (*models.StravaTokenPair, error)
	GetBikesFunc     func(ctx context.Context, accessToken string) ([]models.StravaBike, error)
	DeauthorizeFunc  func(ctx context.Context, accessToken string) error
}

func (m *MockStravaClient) IsTokenValid(ctx context.Context, accessToken string) bool {
	if m.IsTokenValidFunc != nil {
		return m.IsTokenValidFunc(ctx, accessToken)
	}
	return true
}

func (m *MockStravaClient) Refresh(ctx context.Context, refreshToken string) *models.StravaTokenPair {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil
}

func (m *MockStravaClient) Exchange(ctx context.Context, code string) (*models.StravaTokenPair, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code)
	}
	return nil, models.ErrBadRequest
}

func (m *MockStravaClient) GetBikes(ctx context.Context, accessToken string) ([]models.StravaBike, error) {
	if m.GetBikesFunc != nil {
		return m.GetBikesFunc(ctx, accessToken)
	}
	return []models.StravaBike{}, nil
}

func (m *MockStravaClient) Deauthorize(ctx context.Context, accessToken string) error {
	if m.DeauthorizeFunc != nil {
		return m.DeauthorizeFunc(ctx, accessToken)
	}
	return nil
}
