package kvstore

import (
	"fmt"
	"strings"
	"time"
)

// Cache TTLs. Token, permission, and session mappings share the 24h session
// lifetime; remember-me tokens live for 30 days.
const (
	TokenTTL        = 24 * time.Hour
	PermsTTL        = 24 * time.Hour
	SessionTokenTTL = 24 * time.Hour
	OnlineUserTTL   = 24 * time.Hour
	RememberMeTTL   = 30 * 24 * time.Hour
)

// Key prefixes. These are a compatibility contract with existing deployments;
// do not rename.
const (
	userTokenPrefix    = "user_token:"
	userPermsPrefix    = "user_perms:"
	sessionTokenPrefix = "session_token:"
	rememberMePrefix   = "remember_me:"
	onlineUserPrefix   = "online:user:"

	// SessionTokenPattern matches every session-to-token mapping
	SessionTokenPattern = sessionTokenPrefix + "*"
)

// UserTokenKey is the reverse-lookup entry holding a user's current token
func UserTokenKey(userID int64) string {
	return fmt.Sprintf("%s%d", userTokenPrefix, userID)
}

// UserPermsKey holds a user's flattened permission set
func UserPermsKey(userID int64) string {
	return fmt.Sprintf("%s%d", userPermsPrefix, userID)
}

// SessionTokenKey maps a session id to the token issued with it
func SessionTokenKey(sessionID string) string {
	return sessionTokenPrefix + sessionID
}

// SessionIDFromTokenKey extracts the session id from a session_token key
func SessionIDFromTokenKey(key string) string {
	return strings.TrimPrefix(key, sessionTokenPrefix)
}

// RememberMeKey maps a remember-me token to "{userId}:{username}"
func RememberMeKey(token string) string {
	return rememberMePrefix + token
}

// OnlineUserKey marks a session id as online
func OnlineUserKey(sessionID string) string {
	return onlineUserPrefix + sessionID
}
