// Package api assembles the HTTP surface of the back office: the public
// authentication endpoints, the protected admin endpoints, and the health
// and metrics listener.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stewardhq/steward/pkg/auth"
	"github.com/stewardhq/steward/pkg/config"
	"github.com/stewardhq/steward/pkg/files"
	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/loginlog"
	"github.com/stewardhq/steward/pkg/middleware"
	"github.com/stewardhq/steward/pkg/observability"
	"github.com/stewardhq/steward/pkg/session"
)

// Permission strings guarding the admin endpoints
const (
	PermOnlineList    = "online:list"
	PermOnlineKickout = "online:kickout"
	PermLoginLogList  = "loginlog:list"
	PermFileUpload    = "file:upload"
	PermFileDownload  = "file:download"
)

// Deps carries the wired handler and middleware set
type Deps struct {
	Auth      *auth.Handlers
	Sessions  *session.Handlers
	LoginLogs *loginlog.Handlers
	Files     *files.Handlers

	AuthMW       *middleware.AuthMiddleware
	LoginLimiter *middleware.LoginRateLimiter
	APILimiter   *middleware.RateLimiter

	Health   *observability.HealthChecker
	Registry *prometheus.Registry
}

// Server hosts the application and health listeners
type Server struct {
	cfg     *config.Config
	logger  *observability.Logger
	metrics *observability.Metrics
	deps    Deps

	router       *mux.Router
	httpServer   *http.Server
	healthServer *http.Server
}

// NewServer builds the router and both listeners
func NewServer(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		deps:    deps,
		router:  mux.NewRouter(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	s.healthServer = &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: s.healthRouter(),
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(mux.MiddlewareFunc(httputil.RequestIDMiddleware))
	s.router.Use(mux.MiddlewareFunc(httputil.LoggingMiddleware(s.logger)))
	s.router.Use(mux.MiddlewareFunc(httputil.RecoveryMiddleware))

	// Public authentication endpoints
	s.handle("POST", "/api/login",
		s.deps.LoginLimiter.Handler(http.HandlerFunc(s.deps.Auth.Login)))
	s.handle("POST", "/api/login/remember",
		s.deps.LoginLimiter.Handler(http.HandlerFunc(s.deps.Auth.RememberLogin)))
	// Logout is reachable with any bearer token, valid or not
	s.handle("DELETE", "/api/logout", http.HandlerFunc(s.deps.Auth.Logout))

	// Protected admin endpoints
	protected := s.router.PathPrefix("/api/system").Subrouter()
	protected.Use(mux.MiddlewareFunc(s.deps.AuthMW.Handler))
	protected.Use(mux.MiddlewareFunc(s.deps.APILimiter.Handler))

	protected.Handle("/online-users",
		middleware.RequirePermission(PermOnlineList)(http.HandlerFunc(s.deps.Sessions.List))).Methods("GET")
	protected.Handle("/online-users/kickout",
		middleware.RequirePermission(PermOnlineKickout)(http.HandlerFunc(s.deps.Sessions.BatchKickout))).Methods("POST")
	protected.Handle("/online-users/{sessionId}",
		middleware.RequirePermission(PermOnlineKickout)(http.HandlerFunc(s.deps.Sessions.Kickout))).Methods("DELETE")
	protected.Handle("/login-logs",
		middleware.RequirePermission(PermLoginLogList)(http.HandlerFunc(s.deps.LoginLogs.List))).Methods("GET")

	// File storage endpoints
	s.router.Handle("/api/files",
		s.deps.AuthMW.Handler(middleware.RequirePermission(PermFileUpload)(http.HandlerFunc(s.deps.Files.Upload)))).Methods("POST")
	s.router.Handle("/api/files/{key:.*}",
		s.deps.AuthMW.Handler(middleware.RequirePermission(PermFileDownload)(http.HandlerFunc(s.deps.Files.Download)))).Methods("GET")
}

func (s *Server) handle(method, path string, handler http.Handler) {
	s.router.Handle(path, s.metrics.InstrumentHandler(path, handler)).Methods(method)
}

func (s *Server) healthRouter() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.deps.Health.Liveness).Methods("GET")
	router.HandleFunc("/readyz", s.deps.Health.Readiness).Methods("GET")
	if s.cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.MetricsHandler(s.deps.Registry)).Methods("GET")
	}
	return router
}

// Router exposes the application router, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// HTTPServer returns the application listener for shutdown management
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Start runs both listeners. The health listener failing is fatal because a
// deployment without probes would flap.
func (s *Server) Start() error {
	go func() {
		s.logger.WithField("addr", s.healthServer.Addr).Info("health server listening")
		if err := s.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("health server failed")
		}
	}()

	s.logger.WithField("addr", s.httpServer.Addr).Info("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops the health listener; the application listener is owned by
// the shutdown manager.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.healthServer.Shutdown(ctx)
}
