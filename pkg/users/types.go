// Package users handles account persistence and credential verification.
package users

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Account status values
const (
	StatusEnabled  = 1
	StatusDisabled = 0
)

// ErrNotFound is returned when no account matches the lookup
var ErrNotFound = errors.New("users: user not found")

// User is a back-office account. Password holds the bcrypt hash and is never
// serialized.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Nickname  string    `json:"nickname"`
	Email     string    `json:"email"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Enabled reports whether the account may log in
func (u *User) Enabled() bool {
	return u.Status == StatusEnabled
}

// HashPassword hashes a plaintext password with bcrypt at default cost
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
