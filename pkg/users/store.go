package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const userColumns = "id, username, password, nickname, email, status, created_at, updated_at"

// Store persists accounts in SQL. Lookup by username is the hot path of every
// login; the total-count query backs admin dashboards and is cached briefly.
type Store struct {
	db         *sql.DB
	countCache *expirable.LRU[string, int64]
}

// NewStore creates a user store over an open database handle
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		countCache: expirable.NewLRU[string, int64](8, nil, 30*time.Second),
	}
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.Nickname, &u.Email, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// GetByUsername retrieves an account by its unique username
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

// GetByID retrieves an account by id
func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// Count returns the total number of accounts, cached for 30 seconds
func (s *Store) Count(ctx context.Context) (int64, error) {
	if n, ok := s.countCache.Get("total"); ok {
		return n, nil
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	s.countCache.Add("total", n)
	return n, nil
}

// Create inserts a new account. The password must already be hashed.
func (s *Store) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, password, nickname, email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		u.Username, u.Password, u.Nickname, u.Email, u.Status, now, now,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	u.CreatedAt = now
	u.UpdatedAt = now
	s.countCache.Remove("total")
	return nil
}

// UpdatePassword replaces the stored hash for an account
func (s *Store) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = $1, updated_at = $2 WHERE id = $3`,
		hash, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus enables or disables an account
func (s *Store) UpdateStatus(ctx context.Context, id int64, status int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of accounts ordered by id
func (s *Store) List(ctx context.Context, pageNum, pageSize int) ([]*User, int64, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := s.db.QueryContext(ctx, query, pageSize, (pageNum-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Password, &u.Nickname, &u.Email, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user row: %w", err)
		}
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}
	return out, total, nil
}
