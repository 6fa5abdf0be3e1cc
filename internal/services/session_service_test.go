package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spokehq/gearvault/internal/auth"
	"github.com/spokehq/gearvault/internal/models"
)

func newTestSessionService(userRepo *MockUserRepository) *SessionService {
	tm := auth.NewClaimsTokenManager("test-secret-at-least-16-chars", time.Hour)
	return NewSessionService(userRepo, tm, slog.Default())
}

func TestShouldFetchUserData(t *testing.T) {
	tests := []struct {
		name     string
		existing *models.Session
		identity models.Identity
		want     bool
	}{
		{
			name:     "no existing session",
			existing: nil,
			identity: models.Identity{UserID: "u1"},
			want:     true,
		},
		{
			name:     "existing session missing user id",
			existing: &models.Session{},
			identity: models.Identity{UserID: "u1"},
			want:     true,
		},
		{
			name:     "populated session short-circuits",
			existing: &models.Session{UserID: "u1", Email: "rider@example.com", Name: "Rider"},
			identity: models.Identity{UserID: "u1"},
			want:     false,
		},
		{
			name:     "missing name forces fetch",
			existing: &models.Session{UserID: "u1", Email: "rider@example.com"},
			identity: models.Identity{UserID: "u1"},
			want:     true,
		},
		{
			name:     "missing email forces fetch",
			existing: &models.Session{UserID: "u1", Name: "Rider"},
			identity: models.Identity{UserID: "u1"},
			want:     true,
		},
		{
			name:     "invalidate flag overrides populated session",
			existing: &models.Session{UserID: "u1", Email: "rider@example.com", Name: "Rider"},
			identity: models.Identity{UserID: "u1", InvalidateCache: true},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldFetchUserData(tt.existing, tt.identity))
		})
	}
}

func TestSessionService_Materialize_ShortCircuit(t *testing.T) {
	fetched := false
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			fetched = true
			return nil, models.ErrInternalServer
		},
	}

	svc := newTestSessionService(userRepo)
	existing := &models.Session{UserID: "u1", Email: "rider@example.com", Name: "Rider"}

	session, err := svc.Materialize(context.Background(), models.Identity{UserID: "u1"}, existing)

	require.NoError(t, err)
	assert.False(t, fetched, "populated session must not trigger a store fetch")
	assert.Equal(t, "rider@example.com", session.Email)
	assert.Equal(t, "Rider", session.Name)
	assert.True(t, session.DataFresh)
	assert.NotEmpty(t, session.Token)
}

func TestSessionService_Materialize_FetchesMissingProfile(t *testing.T) {
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Email: "rider@example.com", Name: "Rider"}, nil
		},
	}

	svc := newTestSessionService(userRepo)

	session, err := svc.Materialize(context.Background(), models.Identity{UserID: "u1"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "rider@example.com", session.Email)
	assert.Equal(t, "Rider", session.Name)
	assert.True(t, session.DataFresh)
}

func TestSessionService_Materialize_FetchFailureStillReturnsSession(t *testing.T) {
	userRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return nil, models.ErrInternalServer
		},
	}

	svc := newTestSessionService(userRepo)

	session, err := svc.Materialize(context.Background(), models.Identity{UserID: "u1", Email: "rider@example.com"}, nil)

	require.NoError(t, err)
	assert.False(t, session.DataFresh)
	assert.NotEmpty(t, session.DataError)
	assert.NotEmpty(t, session.Token, "a session with stale data still carries a valid token")
	assert.Equal(t, "rider@example.com", session.Email)
}

func TestSessionService_Materialize_TokenAlwaysRecomputed(t *testing.T) {
	userRepo := &MockUserRepository{}
	svc := newTestSessionService(userRepo)
	existing := &models.Session{
		UserID: "u1",
		Email:  "rider@example.com",
		Name:   "Rider",
		Token:  "stale-token",
	}

	session, err := svc.Materialize(context.Background(), models.Identity{UserID: "u1"}, existing)

	require.NoError(t, err)
	assert.NotEqual(t, "stale-token", session.Token)
}
