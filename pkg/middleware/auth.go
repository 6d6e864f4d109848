package middleware

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/taskapi/pkg/apierrors"
	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/contextkeys"
	"github.com/platinummonkey/taskapi/pkg/httputil"
	"github.com/platinummonkey/taskapi/pkg/observability"
	"github.com/platinummonkey/taskapi/pkg/rbac"
)

// MsgNoToken is returned when a protected route is called without a bearer token
const MsgNoToken = "Not authorized, no token"

// AccessTokenVerifier resolves a bearer access token into a principal
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Principal, error)
}

// AuthMiddleware authenticates requests with a bearer access token
type AuthMiddleware struct {
	tokens  AccessTokenVerifier
	metrics *observability.Metrics
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens AccessTokenVerifier, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:  tokens,
		metrics: metrics,
	}
}

// Handler rejects requests without a valid access token with 401 and
// otherwise stores the principal in the request context
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httputil.WriteAPIError(w, r, apierrors.Unauthenticated(MsgNoToken))
			return
		}

		principal, err := m.tokens.VerifyAccessToken(token)
		if err != nil {
			m.metrics.RecordAuthEvent("access_token", false)
			httputil.WriteAPIError(w, r, err)
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from "Authorization: Bearer <token>"
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// RequireAdmin lets only admin principals through and counts denials
// against perm. It must run after AuthMiddleware.
func RequireAdmin(metrics *observability.Metrics, perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := contextkeys.Principal(r.Context())
			if !ok {
				httputil.WriteAPIError(w, r, apierrors.Unauthenticated(MsgNoToken))
				return
			}

			decision := rbac.CheckAdmin(principal, perm)
			if !decision.Allowed {
				metrics.RecordDenial(decision.Permission.String())
				httputil.WriteAPIError(w, r, decision.Err())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
