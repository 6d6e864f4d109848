package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/platinummonkey/taskapi/pkg/apierrors"
)

const (
	// DefaultAccessTokenTTL is the validity window of access tokens
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL is the validity window of refresh tokens
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	// DefaultIssuer is set as the iss claim of every token
	DefaultIssuer = "taskapi"
)

// TokenConfig holds signing configuration for the token service
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// AccessClaims are carried by access tokens
type AccessClaims struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by refresh tokens.
// There is deliberately no role: it is re-read from the store on refresh.
type RefreshClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// UserFinder loads the current user record for a refresh
type UserFinder interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
}

// TokenService issues and verifies access/refresh tokens.
// It holds no per-token state: expiry is the only way a token stops working.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// TokenOption customizes a TokenService
type TokenOption func(*TokenService)

// WithClock overrides the time source used for iat/exp and verification
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a token service from config
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("access token secret is required")
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("refresh token secret is required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("access and refresh token secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}

	s := &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the access token validity window
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// IssueAccessToken signs {id, role} with the access secret
func (s *TokenService) IssueAccessToken(user *User) (string, error) {
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("cannot issue access token without user id")
	}
	claims := &AccessClaims{
		ID:               user.ID,
		Role:             user.Role,
		RegisteredClaims: s.registered(user.ID, s.accessTTL),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.accessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken signs {id} with the refresh secret
func (s *TokenService) IssueRefreshToken(user *User) (string, error) {
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("cannot issue refresh token without user id")
	}
	claims := &RefreshClaims{
		ID:               user.ID,
		RegisteredClaims: s.registered(user.ID, s.refreshTTL),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signed, nil
}

// IssueTokenPair issues a fresh access and refresh token for user
func (s *TokenService) IssueTokenPair(user *User) (*TokenPair, error) {
	access, err := s.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apierrors.Wrap(apierrors.KindUnauthenticated, "Token expired", err)
		}
		return apierrors.Wrap(apierrors.KindUnauthenticated, "Invalid token", err)
	}
	if !token.Valid {
		return apierrors.Unauthenticated("Invalid token")
	}
	return nil
}

// VerifyAccessToken validates an access token and returns its principal
func (s *TokenService) VerifyAccessToken(tokenStr string) (*Principal, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenStr, claims, s.accessSecret); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, apierrors.Unauthenticated("Invalid token")
	}
	if !claims.Role.Valid() {
		return nil, apierrors.Unauthenticated("Invalid token")
	}
	return &Principal{ID: claims.ID, Role: claims.Role}, nil
}

// VerifyRefreshToken validates a refresh token and returns the user id it names
func (s *TokenService) VerifyRefreshToken(tokenStr string) (string, error) {
	claims := &RefreshClaims{}
	if err := s.parse(tokenStr, claims, s.refreshSecret); err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", apierrors.Unauthenticated("Invalid token")
	}
	return claims.ID, nil
}

// Refresh exchanges a refresh token for a new access token.
// The role is always re-read from users so a role change takes effect on the
// next refresh; a user that no longer exists gets a NotFound error.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string, users UserFinder) (string, error) {
	userID, err := s.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}

	user, err := users.GetUserByID(ctx, userID)
	if err != nil {
		if apierrors.IsKind(err, apierrors.KindNotFound) {
			return "", apierrors.NotFound("User not found")
		}
		return "", fmt.Errorf("failed to load user for refresh: %w", err)
	}

	return s.IssueAccessToken(user)
}
