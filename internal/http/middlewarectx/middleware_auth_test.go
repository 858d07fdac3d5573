package middlewarectx_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/subscription-licensing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/jwt"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestJWTMiddleware(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	token, err := maker.GenerateToken("owner@example.com", 7)
	assert.NoError(t, err)

	expiredMaker := jwt.NewJWTMaker("test-secret", -time.Hour)
	expiredToken, err := expiredMaker.GenerateToken("owner@example.com", 7)
	assert.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantNext   bool
	}{
		{
			name:       "valid token passes and fills context",
			authHeader: "Bearer " + token,
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:       "missing header",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			authHeader: "Token abc",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			authHeader: "Bearer " + expiredToken,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "token signed with another secret",
			authHeader: "Bearer " + mustToken(t, "other-secret"),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				assert.Equal(t, "owner@example.com", r.Context().Value(middlewarectx.Email))
				assert.Equal(t, int64(7), r.Context().Value(middlewarectx.UserID))
				w.WriteHeader(http.StatusOK)
			})

			handler := middlewarectx.JWTMiddleware(maker, newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription/days-left", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantNext, nextCalled)
		})
	}
}

func mustToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := jwt.NewJWTMaker(secret, time.Hour).GenerateToken("owner@example.com", 7)
	assert.NoError(t, err)
	return token
}
