package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spokehq/gearvault/internal/models"
)

func connectedUser(expiresAt int64) *models.User {
	access := "access-token"
	refresh := "refresh-token"
	return &models.User{
		ID:                 "user-1",
		Email:              "rider@example.com",
		StravaAccessToken:  &access,
		StravaRefreshToken: &refresh,
		StravaExpiresAt:    &expiresAt,
	}
}

func TestStravaService_Status_ValidToken(t *testing.T) {
	user := connectedUser(time.Now().Add(time.Hour).Unix())
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	client := &MockStravaClient{
		IsTokenValidFunc: func(ctx context.Context, accessToken string) bool {
			return true
		},
	}

	svc := NewStravaService(userRepo, client, slog.Default())

	status, err := svc.Status(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.False(t, status.NeedsReauth)
	assert.Equal(t, *user.StravaExpiresAt, status.ExpiresAt)
}

func TestStravaService_Status_NotConnected(t *testing.T) {
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Email: "rider@example.com"}, nil
		},
	}

	svc := NewStravaService(userRepo, &MockStravaClient{}, slog.Default())

	status, err := svc.Status(context.Background(), "user-1")

	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.False(t, status.NeedsReauth)
}

func TestStravaService_Status_RefreshExhausted(t *testing.T) {
	user := connectedUser(time.Now().Add(-time.Hour).Unix())
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	client := &MockStravaClient{
		RefreshFunc: func(ctx context.Context, refreshToken string) *models.StravaTokenPair {
			return nil
		},
	}

	svc := NewStravaService(userRepo, client, slog.Default())

	status, err := svc.Status(context.Background(), "user-1")

	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.True(t, status.NeedsReauth)
}

func TestStravaService_Bikes_TransparentRefresh(t *testing.T) {
	user := connectedUser(time.Now().Add(-time.Hour).Unix())
	var persisted *models.StravaTokenPair
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		UpdateStravaTokensFunc: func(ctx context.Context, userID string, pair *models.StravaTokenPair) error {
			persisted = pair
			return nil
		},
	}
	client := &MockStravaClient{
		RefreshFunc: func(ctx context.Context, refreshToken string) *models.StravaTokenPair {
			assert.Equal(t, "refresh-token", refreshToken)
			return &models.StravaTokenPair{
				AccessToken:  "new-access",
				RefreshToken: "new-refresh",
				ExpiresAt:    time.Now().Add(6 * time.Hour).Unix(),
			}
		},
		GetBikesFunc: func(ctx context.Context, accessToken string) ([]models.StravaBike, error) {
			assert.Equal(t, "new-access", accessToken)
			return []models.StravaBike{{ID: "b123", Name: "Gravel rig", Distance: 1234.5}}, nil
		},
	}

	svc := NewStravaService(userRepo, client, slog.Default())

	result, err := svc.Bikes(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, result.Connected)
	assert.False(t, result.NeedsReauth)
	require.Len(t, result.Bikes, 1)
	assert.Equal(t, "b123", result.Bikes[0].ID)
	require.NotNil(t, persisted, "refreshed pair must be persisted before use")
	assert.Equal(t, "new-access", persisted.AccessToken)
}

func TestStravaService_Bikes_NeedsReauthIsPayloadNotError(t *testing.T) {
	user := connectedUser(time.Now().Add(-time.Hour).Unix())
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
	}
	client := &MockStravaClient{
		RefreshFunc: func(ctx context.Context, refreshToken string) *models.StravaTokenPair {
			return nil
		},
	}

	svc := NewStravaService(userRepo, client, slog.Default())

	result, err := svc.Bikes(context.Background(), "user-1")

	require.NoError(t, err)
	assert.False(t, result.Connected)
	assert.True(t, result.NeedsReauth)
	assert.NotNil(t, result.Bikes)
	assert.Empty(t, result.Bikes)
}

func TestStravaService_Bikes_NotConnected(t *testing.T) {
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Email: "rider@example.com"}, nil
		},
	}

	svc := NewStravaService(userRepo, &MockStravaClient{}, slog.Default())

	result, err := svc.Bikes(context.Background(), "user-1")

	require.NoError(t, err)
	assert.False(t, result.Connected)
	assert.Empty(t, result.Bikes)
}

func TestStravaService_Connect_Success(t *testing.T) {
	var persisted *models.StravaTokenPair
	userRepo := &MockUserRepository{
		UpdateStravaTokensFunc: func(ctx context.Context, userID string, pair *models.StravaTokenPair) error {
			persisted = pair
			return nil
		},
	}
	client := &MockStravaClient{
		ExchangeFunc: func(ctx context.Context, code string) (*models.StravaTokenPair, error) {
			assert.Equal(t, "auth-code", code)
			return &models.StravaTokenPair{AccessToken: "a", RefreshToken: "r", ExpiresAt: 99}, nil
		},
	}

	svc := NewStravaService(userRepo, client, slog.Default())

	err := svc.Connect(context.Background(), "user-1", "auth-code")

	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "a", persisted.AccessToken)
}

func TestStravaService_Connect_ExchangeFails(t *testing.T) {
	svc := NewStravaService(&MockUserRepository{}, &MockStravaClient{}, slog.Default())

	err := svc.Connect(context.Background(), "user-1", "bad-code")

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestStravaService_Disconnect_ClearsTokensDespiteDeauthFailure(t *testing.T) {
	user := connectedUser(time.Now().Add(time.Hour).Unix())
	cleared := false
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return user, nil
		},
		ClearStravaTokensFunc: func(ctx context.Context, userID string) error {
			cleared = true
			return nil
		},
	}
	client := &MockStravaClient{
		DeauthorizeFunc: func(ctx context.Context, accessToken string) error {
			return models.ErrInternalServer
		},
	}

	svc := NewStravaService(userRepo, client, slog.Default())

	err := svc.Disconnect(context.Background(), "user-1")

	require.NoError(t, err)
	assert.True(t, cleared)
}
