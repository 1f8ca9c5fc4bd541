// Package auth implements the login and logout flows: captcha gating,
// credential verification, capacity enforcement, token issuance, and the
// best-effort cache bookkeeping that follows a successful authorization.
package auth

import "github.com/stewardhq/steward/pkg/httputil"

// Error is a user-facing login failure with its envelope code
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Login failure taxonomy. Every refused login is an authorization failure
// and answers in the 401 family. The password path deliberately answers with
// one message for unknown users and wrong passwords; the captcha path
// reveals "user not found" because the account was already named by a solved
// challenge.
var (
	ErrCaptchaRequired   = &Error{Code: httputil.CodeUnauthorized, Msg: "captcha verification required"}
	ErrCaptchaNoUsername = &Error{Code: httputil.CodeUnauthorized, Msg: "captcha verified but username is missing"}
	ErrEmptyCredentials  = &Error{Code: httputil.CodeUnauthorized, Msg: "username or password cannot be empty"}
	ErrBadCredentials    = &Error{Code: httputil.CodeUnauthorized, Msg: "incorrect username or password"}
	ErrUserNotFound      = &Error{Code: httputil.CodeUnauthorized, Msg: "user not found"}
	ErrAccountDisabled   = &Error{Code: httputil.CodeUnauthorized, Msg: "account disabled"}
	ErrCapacityReached   = &Error{Code: httputil.CodeUnauthorized, Msg: "online user limit reached, please try again later"}
	ErrRememberMeInvalid = &Error{Code: httputil.CodeUnauthorized, Msg: "remember-me token is invalid or expired"}
)
