// Package settings provides the key/value configuration table backing runtime
// toggles, fronted by a cache read-through.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stewardhq/steward/pkg/kvstore"
	"github.com/stewardhq/steward/pkg/observability"
)

// Well-known setting keys
const (
	KeyCaptchaLoginEnabled = "captcha.login.enabled"
)

const cachePrefix = "setting:"
const cacheTTL = 5 * time.Minute

// ErrNotFound is returned when a setting key does not exist
var ErrNotFound = errors.New("settings: key not found")

// Service reads and writes runtime settings. Reads go through the cache;
// writes update SQL then drop the cached entry.
type Service struct {
	db     *sql.DB
	kv     kvstore.Store
	logger *observability.Logger
}

// NewService creates a settings service
func NewService(db *sql.DB, kv kvstore.Store, logger *observability.Logger) *Service {
	return &Service{db: db, kv: kv, logger: logger}
}

// Get returns the raw string value for a key
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if val, err := s.kv.Get(ctx, cachePrefix+key); err == nil {
		return val, nil
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		s.logger.WithError(err).WithField("key", key).Warn("settings cache read failed")
	}

	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}

	if err := s.kv.Set(ctx, cachePrefix+key, val, cacheTTL); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("settings cache write failed")
	}
	return val, nil
}

// GetBool returns a boolean setting; missing or unparsable keys fall back to
// the provided default.
func (s *Service) GetBool(ctx context.Context, key string, defaultVal bool) bool {
	val, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.WithError(err).WithField("key", key).Warn("settings read failed, using default")
		}
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// Set upserts a setting and invalidates the cached entry
func (s *Service) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}

	if _, err := s.kv.Delete(ctx, cachePrefix+key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("settings cache invalidation failed")
	}
	return nil
}
