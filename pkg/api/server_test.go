package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/pkg/auth"
	"github.com/stewardhq/steward/pkg/captcha"
	"github.com/stewardhq/steward/pkg/config"
	"github.com/stewardhq/steward/pkg/files"
	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/kvstore"
	"github.com/stewardhq/steward/pkg/loginlog"
	"github.com/stewardhq/steward/pkg/middleware"
	"github.com/stewardhq/steward/pkg/observability"
	"github.com/stewardhq/steward/pkg/rbac"
	"github.com/stewardhq/steward/pkg/session"
	"github.com/stewardhq/steward/pkg/token"
	"github.com/stewardhq/steward/pkg/users"
)

type staticToggle bool

func (s staticToggle) CaptchaEnabled(ctx context.Context) bool { return bool(s) }

type nopRecorder struct{}

func (nopRecorder) Record(e loginlog.Entry) {}

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()

	mr := miniredis.RunT(t)
	kv := kvstore.NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	tokens, err := token.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	userStore := users.NewStore(db)
	rbacStore := rbac.NewStore(db)
	checker := rbac.NewChecker(rbacStore, kv, logger)
	sessions := session.NewRegistry(db, kv, tokens, logger, metrics)
	gate := captcha.NewGate(staticToggle(false))

	authService := auth.NewService(userStore, rbacStore, sessions, tokens, gate,
		nopRecorder{}, kv, logger, metrics)

	storage, err := files.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: "0", HealthPort: "1"},
		Observability: config.ObservabilityConfig{
			LogLevel:       observability.ErrorLevel,
			MetricsEnabled: true,
		},
	}

	deps := Deps{
		Auth:         auth.NewHandlers(authService, logger),
		Sessions:     session.NewHandlers(sessions, logger),
		LoginLogs:    loginlog.NewHandlers(loginlog.NewStore(db), logger),
		Files:        files.NewHandlers(storage, logger),
		AuthMW:       middleware.NewAuthMiddleware(tokens, kv, checker, sessions, logger, metrics),
		LoginLimiter: middleware.NewLoginRateLimiter(kv, 5, time.Minute, logger, metrics),
		APILimiter:   middleware.NewRateLimiter(100, time.Second, 100),
		Health:       observability.NewHealthChecker(db, kv),
		Registry:     registry,
	}
	return NewServer(cfg, logger, metrics, deps), mock
}

func TestServer_Login_EmptyCredentials(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"username":"","password":""}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	// A refused login is an authorization failure, HTTP 401 included
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var result httputil.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, httputil.CodeUnauthorized, result.Code)
	assert.Equal(t, "username or password cannot be empty", result.Msg)
}

func TestServer_ProtectedRoutes_RequireToken(t *testing.T) {
	srv, _ := newTestServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/system/online-users"},
		{http.MethodDelete, "/api/system/online-users/abc123"},
		{http.MethodPost, "/api/system/online-users/kickout"},
		{http.MethodGet, "/api/system/login-logs"},
		{http.MethodPost, "/api/files"},
		{http.MethodGet, "/api/files/2026/08/29/x.txt"},
	}
	for _, route := range routes {
		req := httptest.NewRequest(route.method, route.path, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
		var result httputil.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, httputil.CodeUnauthorized, result.Code)
	}
}

func TestServer_Logout_AlwaysSucceeds(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/logout", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result httputil.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, httputil.CodeSuccess, result.Code)
}

func TestServer_HealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	health := srv.healthRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	health.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	health.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RequestIDPropagated(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/logout", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, "trace-me", rec.Header().Get("X-Request-ID"))
}
