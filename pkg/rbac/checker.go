package rbac

import (
	"context"
	"fmt"

	"github.com/stewardhq/steward/pkg/kvstore"
	"github.com/stewardhq/steward/pkg/observability"
)

// PermissionSource resolves a user's flattened permission set from SQL
type PermissionSource interface {
	PermsByUserID(ctx context.Context, userID int64) ([]Permission, error)
}

// Checker answers "does user X hold permission P". It reads the cached set in
// user_perms:{userId} first; a cache miss falls back to SQL and repopulates
// the cache. Deleting the cache key therefore forces a reload on the next
// check, which is how permission changes take effect mid-session.
type Checker struct {
	source PermissionSource
	kv     kvstore.Store
	logger *observability.Logger
}

// NewChecker creates a permission checker
func NewChecker(source PermissionSource, kv kvstore.Store, logger *observability.Logger) *Checker {
	return &Checker{source: source, kv: kv, logger: logger}
}

// Permissions returns the user's permission set, cache first
func (c *Checker) Permissions(ctx context.Context, userID int64) ([]Permission, error) {
	cached, err := c.kv.SMembers(ctx, kvstore.UserPermsKey(userID))
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("permission cache read failed, falling back to SQL")
	}

	perms, err := c.source.PermsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}

	if len(perms) > 0 {
		if err := c.kv.SAdd(ctx, kvstore.UserPermsKey(userID), perms, kvstore.PermsTTL); err != nil {
			c.logger.WithError(err).WithField("user_id", userID).Warn("failed to repopulate permission cache")
		}
	}
	return perms, nil
}

// Has reports whether the user holds the permission
func (c *Checker) Has(ctx context.Context, userID int64, perm Permission) (bool, error) {
	perms, err := c.Permissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops the cached permission set for a user
func (c *Checker) Invalidate(ctx context.Context, userID int64) error {
	_, err := c.kv.Delete(ctx, kvstore.UserPermsKey(userID))
	return err
}
