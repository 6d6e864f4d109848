package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/httputil"
	"github.com/platinummonkey/taskapi/pkg/middleware"
	"github.com/platinummonkey/taskapi/pkg/observability"
	"github.com/platinummonkey/taskapi/pkg/storage"
)

// DefaultAPIPrefix is the path every resource route is mounted under
const DefaultAPIPrefix = "/api/v1"

// RootMessage is returned by GET /
const RootMessage = "Task Manager API Running"

// Options wires the server to its collaborators
type Options struct {
	Store   storage.Store
	Tokens  *auth.TokenService
	Hasher  *auth.PasswordHasher
	Metrics *observability.Metrics // optional
	Logger  *observability.Logger

	// Limiter guards every route; nil disables rate limiting
	Limiter    middleware.Limiter
	TrustProxy bool

	APIPrefix    string
	CORSOrigins  []string
	MaxBodyBytes int64
	Tracing      bool

	// Now and NewID are overridable for tests
	Now   func() time.Time
	NewID func() string
}

// Server is the HTTP API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	opts    Options
}

// RouteRegistrar is implemented by each handler group
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// NewServer builds the router and the middleware chain around it
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("api: store is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("api: token service is required")
	}
	if opts.Hasher == nil {
		return nil, errors.New("api: password hasher is required")
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = DefaultAPIPrefix
	}
	opts.APIPrefix = "/" + strings.Trim(opts.APIPrefix, "/")
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = httputil.DefaultMaxBodyBytes
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
	}
	s.setupRoutes()
	s.handler = s.chain()(s.router)
	return s, nil
}

func (s *Server) setupRoutes() {
	withFallbacks(s.router)

	if s.opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))
	}
	if s.opts.Tracing {
		s.router.Use(func(next http.Handler) http.Handler {
			return observability.InstrumentHandler(next, "taskapi")
		})
	}

	s.router.HandleFunc("/", s.root).Methods(http.MethodGet)

	authn := middleware.NewAuthMiddleware(s.opts.Tokens, s.opts.Metrics)
	prefixed := subrouter(s.router, s.opts.APIPrefix)

	registrars := []RouteRegistrar{
		NewAuthHandlers(s.opts.Store, s.opts.Tokens, s.opts.Hasher, s.opts.Metrics, authn),
		NewAdminHandlers(s.opts.Store, s.opts.Metrics, authn),
		NewTaskHandlers(s.opts.Store, s.opts.Metrics, authn, s.opts.Now, s.opts.NewID),
	}
	for _, r := range registrars {
		r.RegisterRoutes(prefixed)
	}
}

// chain returns the middleware that runs before routing.
// The rate limiter sits inside CORS so rejected responses stay readable
// by browsers.
func (s *Server) chain() func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.opts.Logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(s.opts.CORSOrigins),
	}
	if s.opts.Limiter != nil {
		limiter := middleware.NewRateLimitMiddleware(s.opts.Limiter, s.opts.TrustProxy, s.opts.Metrics)
		mws = append(mws, limiter.Handler)
	}
	mws = append(mws, httputil.MaxBytesMiddleware(s.opts.MaxBodyBytes))
	return httputil.Chain(mws...)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// root handles GET /
func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	httputil.WriteMessage(w, http.StatusOK, RootMessage)
}

// subrouter returns a router for prefix that answers unmatched paths and
// methods with the JSON envelope. A mux subrouter that matches the prefix
// does not fall back to its parent's handlers.
func subrouter(parent *mux.Router, prefix string) *mux.Router {
	return withFallbacks(parent.PathPrefix(prefix).Subrouter())
}

func withFallbacks(r *mux.Router) *mux.Router {
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorMessage(w, http.StatusNotFound, "Route not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
}
