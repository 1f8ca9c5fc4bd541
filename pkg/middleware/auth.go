// Package middleware provides the request authentication, authorization, and
// rate limiting layers in front of the API handlers.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/stewardhq/steward/pkg/contextkeys"
	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/kvstore"
	"github.com/stewardhq/steward/pkg/observability"
	"github.com/stewardhq/steward/pkg/token"
)

// Principal is the authenticated caller attached to the request context
type Principal struct {
	UserID      int64
	Username    string
	Permissions []string
}

// HasPermission reports whether the principal holds perm
func (p *Principal) HasPermission(perm string) bool {
	for _, x := range p.Permissions {
		if x == perm {
			return true
		}
	}
	return false
}

// TokenVerifier validates a bearer token and returns its claims
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// PermissionLoader resolves a user's permission set, cache first
type PermissionLoader interface {
	Permissions(ctx context.Context, userID int64) ([]string, error)
}

// Toucher bumps session last-access, best-effort
type Toucher interface {
	TouchUser(ctx context.Context, userID int64)
}

// AuthMiddleware authenticates requests. A token must carry a valid
// signature AND match the cached user_token entry; deleting that cache key
// (logout, kickout, new login elsewhere) revokes the token even though the
// signature stays valid until expiry.
type AuthMiddleware struct {
	tokens  TokenVerifier
	kv      kvstore.Store
	perms   PermissionLoader
	toucher Toucher
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthMiddleware creates the auth middleware. toucher and metrics may be nil.
func NewAuthMiddleware(tokens TokenVerifier, kv kvstore.Store, perms PermissionLoader, toucher Toucher, logger *observability.Logger, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, kv: kv, perms: perms, toucher: toucher, logger: logger, metrics: metrics}
}

// Handler wraps next with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := httputil.BearerToken(r)
		if tok == "" {
			httputil.WriteUnauthorized(w, r, "authentication required")
			return
		}

		claims, err := m.tokens.Verify(tok)
		if err != nil {
			httputil.WriteUnauthorized(w, r, "invalid or expired token")
			return
		}

		cached, err := m.kv.Get(r.Context(), kvstore.UserTokenKey(claims.UserID))
		if err != nil {
			if !errors.Is(err, kvstore.ErrNotFound) {
				m.logger.WithError(err).Error("user token cache read failed")
				if m.metrics != nil {
					m.metrics.CacheErrorsTotal.WithLabelValues("user_token_get").Inc()
				}
			}
			httputil.WriteUnauthorized(w, r, "session expired, please log in again")
			return
		}
		if cached != tok {
			// A newer login or a kickout replaced or removed this token
			httputil.WriteUnauthorized(w, r, "logged in elsewhere, please log in again")
			return
		}

		perms, err := m.perms.Permissions(r.Context(), claims.UserID)
		if err != nil {
			m.logger.WithError(err).WithField("user_id", claims.UserID).Warn("permission load failed")
			perms = nil
		}

		if m.toucher != nil {
			m.toucher.TouchUser(r.Context(), claims.UserID)
		}

		principal := &Principal{UserID: claims.UserID, Username: claims.Username, Permissions: perms}
		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		ctx = contextkeys.WithUserID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal returns the authenticated principal, or nil
func GetPrincipal(r *http.Request) *Principal {
	if p, ok := r.Context().Value(contextkeys.PrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

// RequirePermission gates a handler behind one permission string
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r)
			if p == nil {
				httputil.WriteUnauthorized(w, r, "authentication required")
				return
			}
			if !p.HasPermission(perm) {
				httputil.WriteForbidden(w, r, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
