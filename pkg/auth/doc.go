// Package auth provides identities, password handling and the access/refresh
// token service.
//
// # Overview
//
// Users authenticate with email and password and receive a token pair. The
// access token is short-lived and carries the principal ({id, role}); the
// refresh token is long-lived and carries only the user id. Tokens are HS256
// JWTs signed with two different secrets, so a leaked refresh token can never
// be presented as an access token.
//
// # Token Service
//
//	tokens, err := auth.NewTokenService(auth.TokenConfig{
//		AccessSecret:  cfg.Auth.AccessSecret,
//		RefreshSecret: cfg.Auth.RefreshSecret,
//	})
//	pair, err := tokens.IssueTokenPair(user)
//	principal, err := tokens.VerifyAccessToken(pair.AccessToken)
//
// Refresh re-reads the user from the credential store, so the new access token
// always reflects the role currently stored, not the one at login time:
//
//	access, err := tokens.Refresh(ctx, pair.RefreshToken, userStore)
//
// There is no server-side token registry. Expiry (15 minutes for access tokens,
// 7 days for refresh tokens by default) is the only way a token stops working.
//
// # Passwords
//
// PasswordHasher wraps bcrypt. Registration input is validated with
// Registration.Validate, which reports the first violated rule:
//
//	reg.Normalize()
//	if err := reg.Validate(); err != nil {
//		// *apierrors.Error with KindValidation
//	}
//
// # Related Packages
//
//   - pkg/rbac: authorization decisions over a Principal
//   - pkg/middleware: bearer-token extraction
package auth
