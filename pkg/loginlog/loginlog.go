// Package loginlog records every login attempt, success or failure, in an
// append-only audit table.
package loginlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Attempt status values
const (
	StatusSuccess = 1
	StatusFailure = 0
)

// Entry is one login attempt. UserID is nil when the username did not resolve
// to an account.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Username  string    `json:"username"`
	Status    int       `json:"status"`
	Msg       string    `json:"msg"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	LoginTime time.Time `json:"login_time"`
}

// Store persists login attempts
type Store struct {
	db *sql.DB
}

// NewStore creates a login log store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert appends an attempt
func (s *Store) Insert(ctx context.Context, e *Entry) error {
	if e.LoginTime.IsZero() {
		e.LoginTime = time.Now()
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO login_logs (user_id, username, status, msg, ip, user_agent, login_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, e.UserID, e.Username, e.Status, e.Msg, e.IP, e.UserAgent, e.LoginTime).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert login log: %w", err)
	}
	return nil
}

// List returns a page of attempts, newest first, optionally filtered by
// username substring.
func (s *Store) List(ctx context.Context, username string, pageNum, pageSize int) ([]*Entry, int64, error) {
	filter := "%" + username + "%"

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM login_logs WHERE username LIKE $1`, filter,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count login logs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, username, status, msg, ip, user_agent, login_time
		FROM login_logs
		WHERE username LIKE $1
		ORDER BY login_time DESC
		LIMIT $2 OFFSET $3
	`, filter, pageSize, (pageNum-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list login logs: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var userID sql.NullInt64
		if err := rows.Scan(&e.ID, &userID, &e.Username, &e.Status, &e.Msg, &e.IP, &e.UserAgent, &e.LoginTime); err != nil {
			return nil, 0, fmt.Errorf("failed to scan login log: %w", err)
		}
		if userID.Valid {
			id := userID.Int64
			e.UserID = &id
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate login logs: %w", err)
	}
	return out, total, nil
}

// DeleteOlderThan removes entries with login_time before the cutoff,
// returning the number deleted. Used by the retention job.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM login_logs WHERE login_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune login logs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
