// Package rbac provides role and permission persistence plus the cached
// permission checker used by the HTTP authorization middleware.
package rbac

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a role lookup matches nothing
var ErrNotFound = errors.New("rbac: role not found")

// Role groups a set of permission strings
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Remark    string    `json:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission strings follow the "resource:action" convention, e.g. "user:edit".
// They are opaque to this package; handlers declare the string they require.
type Permission = string
