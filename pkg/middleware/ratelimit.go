package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/kvstore"
	"github.com/stewardhq/steward/pkg/observability"
)

// LoginRateLimiter is a redis-backed fixed-window limiter keyed by client IP.
// Counters are shared across instances; on a store error the limiter fails
// open so an unreachable redis cannot lock out every login.
type LoginRateLimiter struct {
	kv      kvstore.Store
	limit   int
	window  time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewLoginRateLimiter creates the login limiter. metrics may be nil.
func NewLoginRateLimiter(kv kvstore.Store, limit int, window time.Duration, logger *observability.Logger, metrics *observability.Metrics) *LoginRateLimiter {
	return &LoginRateLimiter{kv: kv, limit: limit, window: window, logger: logger, metrics: metrics}
}

// Allow checks whether another attempt from ip fits in the current window
func (l *LoginRateLimiter) Allow(ctx context.Context, ip string) bool {
	key := fmt.Sprintf("ratelimit:login:ip:%s", ip)

	count, err := l.kv.Incr(ctx, key)
	if err != nil {
		l.logger.WithError(err).Warn("rate limit counter unavailable, allowing request")
		return true
	}
	if count == 1 {
		if err := l.kv.Expire(ctx, key, l.window); err != nil {
			l.logger.WithError(err).Warn("rate limit window expiry failed")
		}
	}
	return count <= int64(l.limit)
}

// Handler rejects over-limit requests before the login flow runs
func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.ClientIP(r)
		if !l.Allow(r.Context(), ip) {
			if l.metrics != nil {
				l.metrics.RateLimitedTotal.WithLabelValues("login").Inc()
			}
			l.logger.WithField("ip", ip).Warn("login rate limit exceeded")
			httputil.WriteRateLimited(w, r, "too many login attempts, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter is an in-memory token bucket used for non-login endpoints,
// where per-instance limiting is acceptable.
type RateLimiter struct {
	limit  int
	window time.Duration
	burst  int

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates an in-memory limiter allowing limit requests per
// window with a burst allowance.
func NewRateLimiter(limit int, window time.Duration, burst int) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		burst:   burst,
		buckets: make(map[string]*bucket),
	}
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.limit + rl.burst), lastUpdate: now}
		rl.buckets[key] = b
	}

	// Refill proportionally to elapsed time
	refill := now.Sub(b.lastUpdate).Seconds() / rl.window.Seconds() * float64(rl.limit)
	b.tokens += refill
	if max := float64(rl.limit + rl.burst); b.tokens > max {
		b.tokens = max
	}
	b.lastUpdate = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Handler wraps next with per-IP limiting
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(httputil.ClientIP(r)) {
			httputil.WriteRateLimited(w, r, "too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
