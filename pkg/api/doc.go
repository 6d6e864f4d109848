// Package api provides the HTTP REST API server for the task manager.
//
// # Overview
//
// The server exposes account registration and login, admin user management,
// and task CRUD with per-user scoping. Every response is a JSON envelope:
//
//	{"success": true, "message": "...", ...payload}
//
// Failures carry "success": false and a client-safe message. Errors without a
// known kind become 500 "Internal server error" and are logged with the
// request-scoped logger.
//
// # Architecture
//
// The API is built on gorilla/mux and organized into handler groups, each
// implementing RouteRegistrar:
//
//   - AuthHandlers: /auth/register, /auth/login, /auth/refresh, /auth/me
//   - AdminHandlers: /admin/users and role changes (admin only)
//   - TaskHandlers: /tasks, /tasks/stats, /tasks/{id}
//
// Resource routes are mounted under Options.APIPrefix (default /api/v1).
// GET / answers a liveness banner.
//
// # Middleware
//
// Requests pass through, outermost first: request id, access logging, panic
// recovery, CORS, rate limiting (when a Limiter is configured) and the body
// size cap. Inside the router, matched routes are instrumented with Prometheus
// metrics and optionally OpenTelemetry spans. Protected groups add bearer
// token authentication, and /admin additionally requires the admin role.
//
// # Usage
//
//	srv, err := api.NewServer(api.Options{
//		Store:   store,
//		Tokens:  tokens,
//		Hasher:  hasher,
//		Metrics: metrics,
//		Logger:  logger,
//		Limiter: middleware.NewMemoryLimiter(middleware.DefaultRateLimitConfig()),
//	})
//	if err != nil {
//		return err
//	}
//	http.ListenAndServe(":3000", srv)
package api
