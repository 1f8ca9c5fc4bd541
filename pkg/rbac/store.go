package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store handles role and permission persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PermsByUserID flattens a user's role memberships into a de-duplicated list
// of permission strings. The joins walk user_roles -> roles -> role_perms.
func (s *Store) PermsByUserID(ctx context.Context, userID int64) ([]Permission, error) {
	query := `
		SELECT DISTINCT rp.perm
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		JOIN role_perms rp ON rp.role_id = r.id
		WHERE ur.user_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}
	return perms, nil
}

// RolesByUserID returns the roles assigned to a user
func (s *Store) RolesByUserID(ctx context.Context, userID int64) ([]Role, error) {
	query := `
		SELECT r.id, r.name, r.remark, r.created_at, r.updated_at
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.id
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Remark, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// CreateRole inserts a role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	now := time.Now()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO roles (name, remark, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		role.Name, role.Remark, now, now,
	).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves a role by id
func (s *Store) GetRole(ctx context.Context, id int64) (*Role, error) {
	var r Role
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, remark, created_at, updated_at FROM roles WHERE id = $1`, id,
	).Scan(&r.ID, &r.Name, &r.Remark, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &r, nil
}

// SetRolePerms replaces a role's permission strings atomically
func (s *Store) SetRolePerms(ctx context.Context, roleID int64, perms []Permission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_perms WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to clear role perms: %w", err)
	}
	for _, p := range perms {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_perms (role_id, perm) VALUES ($1, $2)`, roleID, p); err != nil {
			return fmt.Errorf("failed to insert role perm: %w", err)
		}
	}
	return tx.Commit()
}

// AssignRole grants a role to a user, ignoring duplicates
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RevokeRole removes a role from a user
func (s *Store) RevokeRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`,
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}
