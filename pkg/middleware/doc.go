// Package middleware provides HTTP middleware for authentication, the admin
// gate and fixed-window rate limiting.
//
// # Authentication
//
//	authn := middleware.NewAuthMiddleware(tokenService, metrics)
//	tasks := api.PathPrefix("/tasks").Subrouter()
//	tasks.Use(authn.Handler)
//
// A missing or malformed Authorization header yields 401 "Not authorized,
// no token". A token the TokenService rejects yields 401 with its message.
//
// # Admin Gate
//
//	perm := rbac.Permission{Resource: rbac.ResourceUser, Action: rbac.ActionDelete}
//	admin.Handle("/users/{id}", middleware.RequireAdmin(metrics, perm)(deleteUser))
//
// Denials are counted under the permission of the route.
//
// # Rate Limiting
//
// Both limiters count requests per client IP in fixed windows (default 100
// requests per 15 minutes) and set X-RateLimit-Limit, X-RateLimit-Remaining
// and X-RateLimit-Reset. Rejections get 429 with Retry-After.
//
//	limiter := middleware.NewMemoryLimiter(cfg)               // one process
//	limiter := middleware.NewRedisLimiter(rdb, cfg, "")       // shared
//	handler = middleware.NewRateLimitMiddleware(limiter, cfg.TrustProxy, metrics).Handler(handler)
//
// The Redis limiter runs behind a circuit breaker. When Redis is down the
// request is allowed and the failure is counted.
package middleware
