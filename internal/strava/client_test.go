package strava

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		APIBase:      server.URL,
		TokenURL:     server.URL + "/oauth/token",
		DeauthURL:    server.URL + "/oauth/deauthorize",
	}, slog.Default())
}

func TestClient_IsTokenValid(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/athlete", r.URL.Path)
		if r.Header.Get("Authorization") == "Bearer good-token" {
			w.Write([]byte(`{"id":7}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))

	assert.True(t, client.IsTokenValid(context.Background(), "good-token"))
	assert.False(t, client.IsTokenValid(context.Background(), "bad-token"))
}

func TestClient_Refresh_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))

		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_at":1893456000}`))
	}))

	pair := client.Refresh(context.Background(), "old-refresh")

	require.NotNil(t, pair)
	assert.Equal(t, "new-access", pair.AccessToken)
	assert.Equal(t, "new-refresh", pair.RefreshToken)
	assert.Equal(t, int64(1893456000), pair.ExpiresAt)
}

func TestClient_Refresh_NilOnAnyFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"revoked grant", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"message":"Bad Request","errors":[{"resource":"RefreshToken","code":"invalid"}]}`))
			},
		},
		{
			"provider error", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			"malformed body", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
		},
		{
			"missing tokens", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"access_token":"","refresh_token":""}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			assert.Nil(t, client.Refresh(context.Background(), "some-refresh"))
		})
	}
}

func TestClient_Exchange_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "the-code", r.Form.Get("code"))

		w.Write([]byte(`{"access_token":"a","refresh_token":"r","expires_at":1893456000}`))
	}))

	pair, err := client.Exchange(context.Background(), "the-code")

	require.NoError(t, err)
	assert.Equal(t, "a", pair.AccessToken)
}

func TestClient_Exchange_FailureIsError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	pair, err := client.Exchange(context.Background(), "bad-code")

	assert.Error(t, err)
	assert.Nil(t, pair)
}

func TestClient_GetBikes(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/athlete", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))

		w.Write([]byte(`{
			"id": 7,
			"bikes": [
				{"id":"b123","name":"Gravel rig","primary":true,"distance":120934.5},
				{"id":"b456","name":"Commuter","primary":false,"distance":40211.0}
			]
		}`))
	}))

	bikes, err := client.GetBikes(context.Background(), "access")

	require.NoError(t, err)
	require.Len(t, bikes, 2)
	assert.Equal(t, "b123", bikes[0].ID)
	assert.True(t, bikes[0].Primary)
	assert.Equal(t, 120934.5, bikes[0].Distance)
}

func TestClient_GetBikes_Unauthorized(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	bikes, err := client.GetBikes(context.Background(), "expired")

	assert.Error(t, err)
	assert.Nil(t, bikes)
}

func TestClient_Deauthorize(t *testing.T) {
	called := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/oauth/deauthorize", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "access", r.Form.Get("access_token"))
		w.Write([]byte(`{}`))
	}))

	err := client.Deauthorize(context.Background(), "access")

	require.NoError(t, err)
	assert.True(t, called)
}
