package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stewardhq/steward/pkg/api"
	"github.com/stewardhq/steward/pkg/auth"
	"github.com/stewardhq/steward/pkg/captcha"
	"github.com/stewardhq/steward/pkg/config"
	"github.com/stewardhq/steward/pkg/files"
	"github.com/stewardhq/steward/pkg/kvstore"
	"github.com/stewardhq/steward/pkg/loginlog"
	"github.com/stewardhq/steward/pkg/middleware"
	"github.com/stewardhq/steward/pkg/observability"
	"github.com/stewardhq/steward/pkg/rbac"
	"github.com/stewardhq/steward/pkg/scheduler"
	"github.com/stewardhq/steward/pkg/session"
	"github.com/stewardhq/steward/pkg/settings"
	"github.com/stewardhq/steward/pkg/token"
	"github.com/stewardhq/steward/pkg/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "steward: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	kv, err := kvstore.NewRedisStore(kvstore.RedisConfig{
		URL:        cfg.Redis.URL,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MaxRetries: cfg.Redis.MaxRetries,
		PoolSize:   cfg.Redis.PoolSize,
	})
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)

	tokens, err := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	userStore := users.NewStore(db)
	rbacStore := rbac.NewStore(db)
	checker := rbac.NewChecker(rbacStore, kv, logger)

	settingsSvc := settings.NewService(db, kv, logger)
	gate := captcha.NewGate(settings.NewCaptchaToggle(settingsSvc, cfg.Auth.CaptchaDefault))

	logStore := loginlog.NewStore(db)
	recorder := loginlog.NewRecorder(context.Background(), logStore, logger)

	sessions := session.NewRegistry(db, kv, tokens, logger, metrics)

	authService := auth.NewService(userStore, rbacStore, sessions, tokens, gate,
		recorder, kv, logger, metrics)

	storage, err := files.NewStorage(cfg.Files)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg, logger, metrics, api.Deps{
		Auth:         auth.NewHandlers(authService, logger),
		Sessions:     session.NewHandlers(sessions, logger),
		LoginLogs:    loginlog.NewHandlers(logStore, logger),
		Files:        files.NewHandlers(storage, logger),
		AuthMW:       middleware.NewAuthMiddleware(tokens, kv, checker, sessions, logger, metrics),
		LoginLimiter: middleware.NewLoginRateLimiter(kv, cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow, logger, metrics),
		APILimiter:   middleware.NewRateLimiter(100, cfg.RateLimit.LoginWindow, 200),
		Health:       observability.NewHealthChecker(db, kv),
		Registry:     promRegistry,
	})

	sched := scheduler.New(logger)
	if err := scheduler.RegisterMaintenanceJobs(sched, sessions, logStore, logger); err != nil {
		return err
	}
	sched.Start()

	shutdown := observability.NewShutdownManager(logger, server.HTTPServer(), cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(server.Shutdown)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		sched.Stop()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return recorder.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return kv.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- shutdown.WaitForShutdown()
	}()

	select {
	case err := <-serveErr:
		return err
	case err := <-waitErr:
		return err
	}
}
