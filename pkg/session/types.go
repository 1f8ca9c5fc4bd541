// Package session tracks online users and enforces the one-active-session
// rule: a new login for a user evicts every session that user already holds.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status value stored for every live session row
const StatusOnline = "online"

// Session is one authenticated presence. IDs are 32-hex strings; the session
// id doubles as the redis suffix in online:user:{id} and session_token:{id}.
type Session struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Nickname   string    `json:"nickname"`
	IP         string    `json:"ip"`
	Location   string    `json:"location"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	Status     string    `json:"status"`
	StartTime  time.Time `json:"start_time"`
	LastTime   time.Time `json:"last_time"`
	ExpireTime time.Time `json:"expire_time"`
}

// NewSessionID returns a fresh 32-hex session id
func NewSessionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
