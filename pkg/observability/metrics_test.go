package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

func TestNewMetricsRegistersAll(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.HTTPRequestsTotal.WithLabelValues("GET", "/", "200").Inc()
	m.HTTPRequestDuration.WithLabelValues("GET", "/").Observe(0.01)
	m.HTTPResponseSize.WithLabelValues("GET", "/").Observe(10)
	m.RecordAuthEvent("login", true)
	m.RecordDenial("task:update")
	m.RecordRateLimited("memory")
	m.RecordRateLimiterError("redis")
	m.TasksByStatus.WithLabelValues("pending").Set(1)
	m.StatsCollections.WithLabelValues("success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"taskapi_http_requests_total",
		"taskapi_http_request_duration_seconds",
		"taskapi_http_response_size_bytes",
		"taskapi_auth_events_total",
		"taskapi_authz_denials_total",
		"taskapi_rate_limited_total",
		"taskapi_rate_limiter_errors_total",
		"taskapi_db_connections_active",
		"taskapi_db_connections_idle",
		"taskapi_db_connections_wait_count",
		"taskapi_users_total",
		"taskapi_tasks_total",
		"taskapi_tasks_by_status",
		"taskapi_stats_collections_total",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestNewMetricsDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestRecordHelpers(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordAuthEvent("login", true)
	m.RecordAuthEvent("login", false)
	m.RecordAuthEvent("login", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues("login", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues("login", "failure")))

	m.RecordDenial("task:delete")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDenialsTotal.WithLabelValues("task:delete")))

	m.RecordRateLimited("redis")
	m.RecordRateLimiterError("redis")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("redis")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimiterErrorsTotal.WithLabelValues("redis")))

	m.ObserveDBStats(sql.DBStats{InUse: 3, Idle: 2, WaitCount: 7})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DBConnectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DBConnectionsIdle))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.DBConnectionsWaitCount))
}

func TestRecordHelpersNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAuthEvent("login", true)
		m.RecordDenial("task:read")
		m.RecordRateLimited("memory")
		m.RecordRateLimiterError("memory")
		m.ObserveDBStats(sql.DBStats{})
	})
}

func TestHTTPMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	m, _ := newTestMetrics(t)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false}`))
	}).Methods(http.MethodGet)

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/tasks/{id}", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestsTotal))
}

func TestHTTPMetricsMiddlewareDefaultStatus(t *testing.T) {
	m, _ := newTestMetrics(t)

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "200")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.UsersTotal.Set(4)

	router := mux.NewRouter()
	RegisterMetricsEndpoint(router, reg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "taskapi_users_total 4"), body)
}
