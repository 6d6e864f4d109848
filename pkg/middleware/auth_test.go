package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/contextkeys"
	"github.com/platinummonkey/taskapi/pkg/observability"
	"github.com/platinummonkey/taskapi/pkg/rbac"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(t *testing.T, now func() time.Time) *auth.TokenService {
	t.Helper()
	opts := []auth.TokenOption{}
	if now != nil {
		opts = append(opts, auth.WithClock(now))
	}
	svc, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
	}, opts...)
	require.NoError(t, err)
	return svc
}

func bodyMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Message
}

func TestAuthMiddleware(t *testing.T) {
	svc := newTokenService(t, nil)
	user := &auth.User{ID: "u-1", Role: auth.RoleUser}
	pair, err := svc.IssueTokenPair(user)
	require.NoError(t, err)

	var got *auth.Principal
	handler := NewAuthMiddleware(svc, nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = contextkeys.Principal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantMsg    string
	}{
		{"missing header", "", http.StatusUnauthorized, MsgNoToken},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, MsgNoToken},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, MsgNoToken},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized, "Invalid token"},
		{"refresh token as access", "Bearer " + pair.RefreshToken, http.StatusUnauthorized, "Invalid token"},
		{"valid token", "Bearer " + pair.AccessToken, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + pair.AccessToken, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, tt.wantMsg, bodyMessage(t, w))
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, "u-1", got.ID)
			assert.Equal(t, auth.RoleUser, got.Role)
		})
	}
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := issuedAt
	svc := newTokenService(t, func() time.Time { return now })

	token, err := svc.IssueAccessToken(&auth.User{ID: "u-1", Role: auth.RoleAdmin})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	handler := NewAuthMiddleware(svc, metrics).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	now = issuedAt.Add(16 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token expired", bodyMessage(t, w))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthEventsTotal.WithLabelValues("access_token", "failure")))
}

func TestRequireAdmin(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	called := false
	perm := rbac.Permission{Resource: rbac.ResourceUser, Action: rbac.ActionUpdateRole}
	handler := RequireAdmin(metrics, perm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	t.Run("no principal", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})

	t.Run("regular user", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		req = req.WithContext(contextkeys.WithPrincipal(req.Context(), &auth.Principal{ID: "u", Role: auth.RoleUser}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Access denied. Admin only.", bodyMessage(t, w))
		assert.False(t, called)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuthzDenialsTotal.WithLabelValues("user:update_role")))
		assert.Equal(t, 0.0, testutil.ToFloat64(metrics.AuthzDenialsTotal.WithLabelValues("user:list")))
	})

	t.Run("admin", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		req = req.WithContext(contextkeys.WithPrincipal(req.Context(), &auth.Principal{ID: "a", Role: auth.RoleAdmin}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.True(t, called)
	})
}
