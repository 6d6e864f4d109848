package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskapi/pkg/apierrors"
	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/contextkeys"
	"github.com/platinummonkey/taskapi/pkg/httputil"
	"github.com/platinummonkey/taskapi/pkg/middleware"
	"github.com/platinummonkey/taskapi/pkg/observability"
	"github.com/platinummonkey/taskapi/pkg/storage"
)

// AuthHandlers handles registration, login and token refresh
type AuthHandlers struct {
	users   storage.UserStore
	tokens  *auth.TokenService
	hasher  *auth.PasswordHasher
	metrics *observability.Metrics
	authn   *middleware.AuthMiddleware
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(users storage.UserStore, tokens *auth.TokenService, hasher *auth.PasswordHasher, metrics *observability.Metrics, authn *middleware.AuthMiddleware) *AuthHandlers {
	return &AuthHandlers{
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		metrics: metrics,
		authn:   authn,
	}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	router.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	router.Handle("/auth/me", h.authn.Handler(http.HandlerFunc(h.me))).Methods(http.MethodGet)
}

// register handles POST /auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req auth.Registration
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		h.metrics.RecordAuthEvent("register", false)
		httputil.WriteAPIError(w, r, err)
		return
	}

	_, err := h.users.GetUserByEmail(r.Context(), req.Email)
	switch {
	case err == nil:
		h.metrics.RecordAuthEvent("register", false)
		httputil.WriteAPIError(w, r, apierrors.DuplicateEmail())
		return
	case !apierrors.IsKind(err, apierrors.KindNotFound):
		httputil.WriteAPIError(w, r, err)
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	user := &auth.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         auth.RoleUser,
	}
	// The unique index still catches a concurrent registration
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		h.metrics.RecordAuthEvent("register", false)
		httputil.WriteAPIError(w, r, err)
		return
	}

	h.metrics.RecordAuthEvent("register", true)
	observability.FromContext(r.Context()).WithField("user_id", user.ID).Info("User registered")

	httputil.WriteSuccess(w, http.StatusCreated, httputil.Envelope{
		"message": "User registered successfully",
		"user":    user.Public(),
	})
}

// login handles POST /auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	req.Email = auth.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !apierrors.IsKind(err, apierrors.KindNotFound) {
			httputil.WriteAPIError(w, r, err)
			return
		}
		h.hasher.CompareDummy(req.Password)
		h.loginFailed(r, req.Email)
		httputil.WriteAPIError(w, r, apierrors.InvalidCredentials())
		return
	}

	ok, err := h.hasher.Compare(user.PasswordHash, req.Password)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}
	if !ok {
		h.loginFailed(r, req.Email)
		httputil.WriteAPIError(w, r, apierrors.InvalidCredentials())
		return
	}

	pair, err := h.tokens.IssueTokenPair(user)
	if err != nil {
		httputil.WriteAPIError(w, r, err)
		return
	}

	h.metrics.RecordAuthEvent("login", true)
	httputil.WriteSuccess(w, http.StatusOK, httputil.Envelope{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"user":         user.Public(),
	})
}

// loginFailed counts a rejected login. The log line is the same whether or
// not the email exists.
func (h *AuthHandlers) loginFailed(r *http.Request, email string) {
	h.metrics.RecordAuthEvent("login", false)
	observability.FromContext(r.Context()).WithField("email", email).Warn("Login failed")
}

// refresh handles POST /auth/refresh
func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httputil.WriteAPIError(w, r, apierrors.Validation("Refresh token is required"))
		return
	}

	access, err := h.tokens.Refresh(r.Context(), req.RefreshToken, h.users)
	if err != nil {
		h.metrics.RecordAuthEvent("refresh", false)
		httputil.WriteAPIError(w, r, err)
		return
	}

	h.metrics.RecordAuthEvent("refresh", true)
	httputil.WriteSuccess(w, http.StatusOK, httputil.Envelope{"accessToken": access})
}

// me handles GET /auth/me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	principal, _ := contextkeys.Principal(r.Context())

	user, err := h.users.GetUserByID(r.Context(), principal.ID)
	if err != nil {
		if apierrors.IsKind(err, apierrors.KindNotFound) {
			err = apierrors.NotFound("User not found")
		}
		httputil.WriteAPIError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, httputil.Envelope{"user": user.Public()})
}
