package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spokehq/gearvault/internal/auth"
	"github.com/spokehq/gearvault/internal/models"
	"github.com/spokehq/gearvault/internal/services"
)

const testInternalSecret = "internal-secret"

func newSessionHandler(userRepo *services.MockUserRepository) *SessionHandler {
	tm := auth.NewClaimsTokenManager("test-secret-at-least-16-chars", time.Hour)
	svc := services.NewSessionService(userRepo, tm, slog.Default())
	return NewSessionHandler(svc, testInternalSecret, slog.Default())
}

func sessionRequest(t *testing.T, body any, secret string) *http.Request {
	t.Helper()
	req := authedRequest(t, http.MethodPost, "/auth/session", body, "")
	if secret != "" {
		req.Header.Set("X-Internal-Secret", secret)
	}
	return req
}

func TestSessionHandler_Materialize_Success(t *testing.T) {
	userRepo := &services.MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return &models.User{ID: id, Email: "rider@example.com", Name: "Rider"}, nil
		},
	}
	h := newSessionHandler(userRepo)

	body := SessionRequest{UserID: "5c52ec31-9a36-46ae-8f0d-ac1b0b5ef071"}
	rec := httptest.NewRecorder()

	h.Materialize(rec, sessionRequest(t, body, testInternalSecret))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "rider@example.com", resp.Email)
	assert.Equal(t, "Rider", resp.Name)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.DataFresh)
}

func TestSessionHandler_Materialize_WrongSecret(t *testing.T) {
	h := newSessionHandler(&services.MockUserRepository{})

	body := SessionRequest{UserID: "5c52ec31-9a36-46ae-8f0d-ac1b0b5ef071"}
	rec := httptest.NewRecorder()

	h.Materialize(rec, sessionRequest(t, body, "wrong"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionHandler_Materialize_MissingSecret(t *testing.T) {
	h := newSessionHandler(&services.MockUserRepository{})

	rec := httptest.NewRecorder()
	h.Materialize(rec, sessionRequest(t, SessionRequest{UserID: "5c52ec31-9a36-46ae-8f0d-ac1b0b5ef071"}, ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionHandler_Materialize_InvalidUserID(t *testing.T) {
	h := newSessionHandler(&services.MockUserRepository{})

	rec := httptest.NewRecorder()
	h.Materialize(rec, sessionRequest(t, SessionRequest{UserID: "not-a-uuid"}, testInternalSecret))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_Materialize_StaleDataStillIssuesSession(t *testing.T) {
	userRepo := &services.MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return nil, models.ErrInternalServer
		},
	}
	h := newSessionHandler(userRepo)

	body := SessionRequest{UserID: "5c52ec31-9a36-46ae-8f0d-ac1b0b5ef071", Email: "rider@example.com"}
	rec := httptest.NewRecorder()

	h.Materialize(rec, sessionRequest(t, body, testInternalSecret))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.DataFresh)
	assert.NotEmpty(t, resp.DataError)
	assert.NotEmpty(t, resp.Token)
}

func TestSessionHandler_Materialize_PopulatedSessionSkipsFetch(t *testing.T) {
	fetched := false
	userRepo := &services.MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			fetched = true
			return nil, models.ErrInternalServer
		},
	}
	h := newSessionHandler(userRepo)

	body := SessionRequest{
		UserID: "5c52ec31-9a36-46ae-8f0d-ac1b0b5ef071",
		Email:  "rider@example.com",
		Name:   "Rider",
	}
	rec := httptest.NewRecorder()

	h.Materialize(rec, sessionRequest(t, body, testInternalSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, fetched)
}
