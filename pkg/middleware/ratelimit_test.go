package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/pkg/kvstore"
	"github.com/stewardhq/steward/pkg/observability"
)

func setupLoginLimiterTest(t *testing.T, limit int, window time.Duration) (*LoginRateLimiter, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	kv, err := kvstore.NewRedisStore(kvstore.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	limiter := NewLoginRateLimiter(kv, limit, window, logger, nil)

	return limiter, mr, func() {
		kv.Close()
		mr.Close()
	}
}

func TestLoginRateLimiter_EnforcesLimit(t *testing.T) {
	limiter, _, cleanup := setupLoginLimiterTest(t, 5, time.Minute)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(ctx, "10.0.0.1"), "attempt %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow(ctx, "10.0.0.1"), "sixth attempt should be rejected")

	// A different IP has its own window
	assert.True(t, limiter.Allow(ctx, "10.0.0.2"))
}

func TestLoginRateLimiter_WindowResets(t *testing.T) {
	limiter, mr, cleanup := setupLoginLimiterTest(t, 2, time.Minute)
	defer cleanup()

	ctx := context.Background()
	limiter.Allow(ctx, "10.0.0.1")
	limiter.Allow(ctx, "10.0.0.1")
	require.False(t, limiter.Allow(ctx, "10.0.0.1"))

	mr.FastForward(2 * time.Minute)
	assert.True(t, limiter.Allow(ctx, "10.0.0.1"))
}

func TestLoginRateLimiter_FailsOpenOnStoreError(t *testing.T) {
	limiter, mr, cleanup := setupLoginLimiterTest(t, 1, time.Minute)
	defer cleanup()

	mr.Close()
	assert.True(t, limiter.Allow(context.Background(), "10.0.0.1"))
}

func TestLoginRateLimiter_Handler(t *testing.T) {
	limiter, _, cleanup := setupLoginLimiterTest(t, 1, time.Minute)
	defer cleanup()

	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	// Rejection travels as application code 1006 with HTTP 200
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1006, res.Code)
}

func TestRateLimiter_TokenBucket(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour, 0)

	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	// Independent keys
	assert.True(t, rl.Allow("other"))
}
