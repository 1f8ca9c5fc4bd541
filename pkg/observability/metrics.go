package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	LoginAttemptsTotal   *prometheus.CounterVec
	LoginDuration        prometheus.Histogram
	LogoutsTotal         prometheus.Counter
	RateLimitedTotal     *prometheus.CounterVec
	CaptchaRejectedTotal prometheus.Counter

	// Session metrics
	SessionsActive       prometheus.Gauge
	SessionsEvictedTotal *prometheus.CounterVec
	SessionSweepDuration prometheus.Histogram

	// Cache metrics
	CacheErrorsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "steward_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_login_attempts_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"status"},
		),
		LoginDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "steward_login_duration_seconds",
				Help:    "Login flow duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		LogoutsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "steward_logouts_total",
				Help: "Total number of logout requests",
			},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_rate_limited_total",
				Help: "Total number of rate limited requests",
			},
			[]string{"endpoint"},
		),
		CaptchaRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "steward_captcha_rejected_total",
				Help: "Total number of logins rejected for missing captcha verification",
			},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "steward_sessions_active",
				Help: "Number of currently active sessions",
			},
		),
		SessionsEvictedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_sessions_evicted_total",
				Help: "Total number of evicted sessions by reason",
			},
			[]string{"reason"},
		),
		SessionSweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "steward_session_sweep_duration_seconds",
				Help:    "Expired session sweep duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_cache_errors_total",
				Help: "Total number of cache operation errors",
			},
			[]string{"operation"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "steward_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "steward_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttemptsTotal,
		m.LoginDuration,
		m.LogoutsTotal,
		m.RateLimitedTotal,
		m.CaptchaRejectedTotal,
		m.SessionsActive,
		m.SessionsEvictedTotal,
		m.SessionSweepDuration,
		m.CacheErrorsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
