package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/taskapi/pkg/apierrors"
	"github.com/platinummonkey/taskapi/pkg/httputil"
	"github.com/platinummonkey/taskapi/pkg/observability"
)

// MsgTooManyRequests is the body message of a rate-limited response
const MsgTooManyRequests = "Too many requests, please try again later"

// RateLimitConfig defines a fixed-window rate limit
type RateLimitConfig struct {
	// Requests is the max requests allowed per client in one window
	Requests int
	// Window is the length of a fixed window
	Window time.Duration
	// MaxKeys bounds the number of clients tracked in memory
	MaxKeys int
	// TrustProxy takes the client IP from X-Forwarded-For
	TrustProxy bool
}

// DefaultRateLimitConfig returns 100 requests per 15 minutes per client
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Requests: 100,
		Window:   15 * time.Minute,
		MaxKeys:  100000,
	}
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	def := DefaultRateLimitConfig()
	if c.Requests <= 0 {
		c.Requests = def.Requests
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.MaxKeys <= 0 {
		c.MaxKeys = def.MaxKeys
	}
	return c
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, at least 1
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(d.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter counts requests per key in fixed windows
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Backend() string
}

type window struct {
	start time.Time
	count int
}

// MemoryLimiter keeps windows in a bounded LRU whose entries expire with
// their window. Limits are per process.
type MemoryLimiter struct {
	config  RateLimitConfig
	windows *expirable.LRU[string, *window]
	mu      sync.Mutex
	now     func() time.Time
}

// NewMemoryLimiter creates an in-memory fixed-window limiter
func NewMemoryLimiter(config RateLimitConfig) *MemoryLimiter {
	config = config.withDefaults()
	return &MemoryLimiter{
		config:  config,
		windows: expirable.NewLRU[string, *window](config.MaxKeys, nil, config.Window),
		now:     time.Now,
	}
}

// Backend names the limiter in metrics
func (l *MemoryLimiter) Backend() string {
	return "memory"
}

// Allow counts a request for key in the current window
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(key)
	if !ok || !now.Before(w.start.Add(l.config.Window)) {
		w = &window{start: now}
		l.windows.Add(key, w)
	}
	w.count++

	remaining := l.config.Requests - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.count <= l.config.Requests,
		Limit:     l.config.Requests,
		Remaining: remaining,
		ResetAt:   w.start.Add(l.config.Window),
	}, nil
}

// Len returns the number of tracked clients
func (l *MemoryLimiter) Len() int {
	return l.windows.Len()
}

// RateLimitMiddleware applies a Limiter to every request keyed by client IP
type RateLimitMiddleware struct {
	limiter    Limiter
	trustProxy bool
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter, trustProxy bool, metrics *observability.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:    limiter,
		trustProxy: trustProxy,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Handler wraps an HTTP handler with rate limiting. Limiter failures let
// the request through.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + ClientIP(r, m.trustProxy)

		decision, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.metrics.RecordRateLimiterError(m.limiter.Backend())
			observability.FromContext(r.Context()).
				WithError(err).
				WithField("backend", m.limiter.Backend()).
				Warn("Rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			m.metrics.RecordRateLimited(m.limiter.Backend())
			h.Set("Retry-After", strconv.Itoa(decision.RetryAfter(m.now())))
			httputil.WriteAPIError(w, r, apierrors.New(apierrors.KindRateLimited, MsgTooManyRequests))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For entry when trustProxy is set,
// otherwise the host part of RemoteAddr
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
			if first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
