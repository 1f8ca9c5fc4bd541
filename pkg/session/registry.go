package session

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/stewardhq/steward/pkg/kvstore"
	"github.com/stewardhq/steward/pkg/observability"
)

const sessionColumns = "id, user_id, username, nickname, ip, location, browser, os, status, start_time, last_time, expire_time"

// TokenReader resolves the user id embedded in an issued token, returning 0
// when the token cannot be parsed.
type TokenReader interface {
	UserIDFromToken(token string) int64
}

// Registry is the session bookkeeper. Rows live in SQL, presence markers and
// token mappings live in the kvstore; both are written on login and cleaned
// on eviction.
type Registry struct {
	db      *sql.DB
	kv      kvstore.Store
	tokens  TokenReader
	logger  *observability.Logger
	metrics *observability.Metrics

	// one mutex per user id serializes the evict-then-insert window; the
	// back-office population is small enough to never reap these
	userLocks sync.Map
}

// NewRegistry creates a session registry. metrics may be nil.
func NewRegistry(db *sql.DB, kv kvstore.Store, tokens TokenReader, logger *observability.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{db: db, kv: kv, tokens: tokens, logger: logger, metrics: metrics}
}

func (r *Registry) lockUser(userID int64) func() {
	v, _ := r.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Add registers a new session, first evicting every session the user already
// holds. Two concurrent logins for the same user serialize here; the later
// one wins.
func (r *Registry) Add(ctx context.Context, s *Session) error {
	unlock := r.lockUser(s.UserID)
	defer unlock()

	if err := r.evictLocked(ctx, s.UserID, "new_login"); err != nil {
		r.logger.WithError(err).WithField("user_id", s.UserID).Warn("failed to evict previous sessions")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, s.ID, s.UserID, s.Username, s.Nickname, s.IP, s.Location, s.Browser, s.OS, s.Status, s.StartTime, s.LastTime, s.ExpireTime)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := r.kv.Set(ctx, kvstore.OnlineUserKey(s.ID), s.Username, kvstore.OnlineUserTTL); err != nil {
		r.logger.WithError(err).WithField("session_id", s.ID).Warn("failed to mark session online")
	}
	if r.metrics != nil {
		r.metrics.SessionsActive.Inc()
	}
	return nil
}

// evictLocked removes all sessions for a user. Caller holds the user lock.
func (r *Registry) evictLocked(ctx context.Context, userID int64, reason string) error {
	ids, err := r.sessionIDsForUser(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete session rows: %w", err)
	}

	keys := []string{kvstore.UserTokenKey(userID)}
	for _, id := range ids {
		keys = append(keys, kvstore.OnlineUserKey(id), kvstore.SessionTokenKey(id))
	}
	if _, err := r.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete session cache keys: %w", err)
	}

	if r.metrics != nil && len(ids) > 0 {
		r.metrics.SessionsEvictedTotal.WithLabelValues(reason).Add(float64(len(ids)))
		r.metrics.SessionsActive.Sub(float64(len(ids)))
	}
	return nil
}

func (r *Registry) sessionIDsForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RemoveByUserID evicts every session a user holds
func (r *Registry) RemoveByUserID(ctx context.Context, userID int64, reason string) error {
	unlock := r.lockUser(userID)
	defer unlock()
	return r.evictLocked(ctx, userID, reason)
}

// RemoveBySessionID evicts one session (kickout). The session's token mapping
// is resolved so the reverse user_token entry can be deleted too; without
// that the evicted token would still pass the middleware equality check.
func (r *Registry) RemoveBySessionID(ctx context.Context, sessionID string) error {
	keys := []string{kvstore.OnlineUserKey(sessionID), kvstore.SessionTokenKey(sessionID)}

	if tok, err := r.kv.Get(ctx, kvstore.SessionTokenKey(sessionID)); err == nil {
		if userID := r.tokens.UserIDFromToken(tok); userID != 0 {
			keys = append(keys, kvstore.UserTokenKey(userID))
		}
	} else if err != kvstore.ErrNotFound {
		r.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to resolve session token")
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if _, err := r.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete session cache keys: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 && r.metrics != nil {
		r.metrics.SessionsEvictedTotal.WithLabelValues("kickout").Inc()
		r.metrics.SessionsActive.Dec()
	}
	return nil
}

// Touch bumps a session's last-access time and refreshes its cache TTLs.
// Best-effort; failures only log.
func (r *Registry) Touch(ctx context.Context, sessionID string) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_time = $1 WHERE id = $2`, time.Now(), sessionID); err != nil {
		r.logger.WithError(err).WithField("session_id", sessionID).Debug("session touch failed")
	}
	if err := r.kv.Expire(ctx, kvstore.OnlineUserKey(sessionID), kvstore.OnlineUserTTL); err != nil {
		r.logger.WithError(err).WithField("session_id", sessionID).Debug("online marker refresh failed")
	}
}

// TouchUser bumps last-access for the user's live session. Single-session
// enforcement makes the user id sufficient to address it. Best-effort.
func (r *Registry) TouchUser(ctx context.Context, userID int64) {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_time = $1 WHERE user_id = $2`, time.Now(), userID); err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Debug("session touch failed")
	}
}

// CountActive returns the number of live sessions
func (r *Registry) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// RemoveExpired deletes sessions whose expire_time has passed, returning the
// count removed and their cache keys cleaned.
func (r *Registry) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM sessions WHERE expire_time < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to query expired sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan expired session id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expire_time < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()

	var keys []string
	for _, id := range ids {
		keys = append(keys, kvstore.OnlineUserKey(id), kvstore.SessionTokenKey(id))
	}
	if _, err := r.kv.Delete(ctx, keys...); err != nil {
		r.logger.WithError(err).Warn("failed to delete expired session cache keys")
	}

	if r.metrics != nil && n > 0 {
		r.metrics.SessionsEvictedTotal.WithLabelValues("expired").Add(float64(n))
		r.metrics.SessionsActive.Sub(float64(n))
	}
	return n, nil
}

// Sweep runs one expiry pass. Errors are logged, never propagated; the sweep
// runs from a cron job that must keep its schedule.
func (r *Registry) Sweep(ctx context.Context) {
	start := time.Now()
	n, err := r.RemoveExpired(ctx, start)
	if r.metrics != nil {
		r.metrics.SessionSweepDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		r.logger.WithError(err).Error("session sweep failed")
		return
	}
	if n > 0 {
		r.logger.WithField("removed", n).Info("session sweep removed expired sessions")
	}
}

// List returns a page of sessions, newest first, optionally filtered by
// username substring and exact ip.
func (r *Registry) List(ctx context.Context, username, ip string, pageNum, pageSize int) ([]*Session, int64, error) {
	filter := "%" + username + "%"
	ipFilter := "%" + ip + "%"

	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE username LIKE $1 AND ip LIKE $2`, filter, ipFilter,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE username LIKE $1 AND ip LIKE $2
		ORDER BY start_time DESC
		LIMIT $3 OFFSET $4
	`, filter, ipFilter, pageSize, (pageNum-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Username, &s.Nickname, &s.IP, &s.Location, &s.Browser, &s.OS, &s.Status, &s.StartTime, &s.LastTime, &s.ExpireTime); err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return out, total, nil
}
