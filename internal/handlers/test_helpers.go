package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/spokehq/gearvault/internal/auth"
	"github.com/spokehq/gearvault/internal/models"
	pkglogger "github.com/spokehq/gearvault/pkg/logger"
)

// newAuditLogger returns an audit logger suitable for handler tests
func newAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(slog.Default())
}

// authedRequest builds a request carrying session claims for userID, as the
// auth middleware would have injected them.
func authedRequest(t *testing.T, method, target string, body any, userID string) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	if userID != "" {
		claims := &models.SessionTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		}
		req = req.WithContext(context.WithValue(req.Context(), auth.UserContextKey, claims))
	}
	return req
}

// decodeBody unmarshals a JSON response body into out
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}
