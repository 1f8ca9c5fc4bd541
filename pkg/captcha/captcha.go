// Package captcha gates the login flow behind human verification when the
// captcha.login.enabled toggle is on.
//
// Image generation and answer matching happen in an external verifier; by the
// time a request reaches the gate it either carries a verified assertion or
// it does not.
package captcha

import (
	"context"
)

// Assertion is attached to a login request once the external verifier has
// accepted the challenge answer.
type Assertion struct {
	// Username the challenge was solved for
	Username string `json:"username"`
	// Verified is set by the verifier, never by the client
	Verified bool `json:"verified"`
}

// Verifier issues challenges and checks answers. The concrete implementation
// lives outside this service.
type Verifier interface {
	// Challenge creates a new captcha challenge and returns its id plus the
	// rendered image payload
	Challenge(ctx context.Context) (id string, image []byte, err error)
	// Verify checks an answer and, on success, returns an assertion for the
	// username the client claims
	Verify(ctx context.Context, id, answer, username string) (*Assertion, error)
}

// Toggle reports whether captcha is currently required for login
type Toggle interface {
	CaptchaEnabled(ctx context.Context) bool
}

// Decision is the gate's verdict on a login request
type Decision int

const (
	// PasswordPath means captcha is disabled; proceed with credential checks
	PasswordPath Decision = iota
	// CaptchaPath means a verified assertion is present; skip the password
	CaptchaPath
	// RejectNoAssertion means captcha is required but nothing was verified
	RejectNoAssertion
	// RejectNoUsername means the assertion is verified but names no account
	RejectNoUsername
)

// Gate decides which login path a request takes
type Gate struct {
	toggle Toggle
}

// NewGate creates a captcha gate
func NewGate(toggle Toggle) *Gate {
	return &Gate{toggle: toggle}
}

// Check evaluates a login request. assertion may be nil. A verified
// assertion always takes the captcha path, even while the toggle is off;
// the toggle only decides whether a request WITHOUT one is allowed through.
func (g *Gate) Check(ctx context.Context, assertion *Assertion) Decision {
	if assertion != nil && assertion.Verified {
		if assertion.Username == "" {
			return RejectNoUsername
		}
		return CaptchaPath
	}
	if !g.toggle.CaptchaEnabled(ctx) {
		return PasswordPath
	}
	return RejectNoAssertion
}
