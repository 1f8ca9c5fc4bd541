package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/pkg/captcha"
	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/kvstore"
	"github.com/stewardhq/steward/pkg/loginlog"
	"github.com/stewardhq/steward/pkg/observability"
	"github.com/stewardhq/steward/pkg/session"
	"github.com/stewardhq/steward/pkg/users"
)

// UserStore resolves accounts for credential checks and supplies the
// registered-user total the capacity rule compares against
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*users.User, error)
	GetByID(ctx context.Context, id int64) (*users.User, error)
	Count(ctx context.Context) (int64, error)
}

// PermissionSource resolves a user's flattened permission set
type PermissionSource interface {
	PermsByUserID(ctx context.Context, userID int64) ([]string, error)
}

// SessionRegistry is the slice of the registry the orchestrator needs
type SessionRegistry interface {
	Add(ctx context.Context, s *session.Session) error
	RemoveByUserID(ctx context.Context, userID int64, reason string) error
	RemoveBySessionID(ctx context.Context, sessionID string) error
	CountActive(ctx context.Context) (int, error)
}

// TokenIssuer signs tokens and reads back their claims tolerantly
type TokenIssuer interface {
	Issue(userID int64, username string) (string, error)
	TTL() time.Duration
	UserIDFromToken(token string) int64
}

// Recorder appends to the login audit trail, best-effort
type Recorder interface {
	Record(e loginlog.Entry)
}

// LoginRequest carries everything one login attempt needs
type LoginRequest struct {
	Username   string
	Password   string
	RememberMe bool
	Captcha    *captcha.Assertion
	IP         string
	UserAgent  string
}

// LoginResult is returned on success
type LoginResult struct {
	Token         string   `json:"token"`
	RememberToken string   `json:"rememberToken,omitempty"`
	UserID        int64    `json:"userId"`
	Username      string   `json:"username"`
	Nickname      string   `json:"nickname"`
	Permissions   []string `json:"permissions"`
}

// Service orchestrates login, logout, and remember-me re-authentication
type Service struct {
	userStore UserStore
	perms     PermissionSource
	registry  SessionRegistry
	tokens    TokenIssuer
	gate      *captcha.Gate
	recorder  Recorder
	kv        kvstore.Store
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewService wires the auth orchestrator. metrics may be nil.
func NewService(
	userStore UserStore,
	perms PermissionSource,
	registry SessionRegistry,
	tokens TokenIssuer,
	gate *captcha.Gate,
	recorder Recorder,
	kv kvstore.Store,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		userStore: userStore,
		perms:     perms,
		registry:  registry,
		tokens:    tokens,
		gate:      gate,
		recorder:  recorder,
		kv:        kv,
		logger:    logger,
		metrics:   metrics,
	}
}

// fail records the attempt in the audit trail before surfacing the error.
// The trail keeps failures even when the username resolved to no account.
func (s *Service) fail(req LoginRequest, user *users.User, authErr *Error) *Error {
	e := loginlog.Entry{
		Username:  req.Username,
		Status:    loginlog.StatusFailure,
		Msg:       authErr.Msg,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	}
	if user != nil {
		uid := user.ID
		e.UserID = &uid
		e.Username = user.Username
	}
	s.recorder.Record(e)
	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	}
	return authErr
}

// Login runs the full login flow. The authorization decision (captcha,
// credentials, status, capacity) hard-fails; everything after it is
// best-effort and never turns a granted login into a failure.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.LoginDuration.Observe(time.Since(start).Seconds())
		}
	}()

	var user *users.User

	switch s.gate.Check(ctx, req.Captcha) {
	case captcha.RejectNoAssertion:
		if s.metrics != nil {
			s.metrics.CaptchaRejectedTotal.Inc()
		}
		return nil, s.fail(req, nil, ErrCaptchaRequired)

	case captcha.RejectNoUsername:
		if s.metrics != nil {
			s.metrics.CaptchaRejectedTotal.Inc()
		}
		return nil, s.fail(req, nil, ErrCaptchaNoUsername)

	case captcha.CaptchaPath:
		// The challenge already proved a human solved it for this username;
		// the password is not consulted on this path.
		req.Username = req.Captcha.Username
		u, err := s.userStore.GetByUsername(ctx, req.Username)
		if errors.Is(err, users.ErrNotFound) {
			return nil, s.fail(req, nil, ErrUserNotFound)
		}
		if err != nil {
			s.logger.WithError(err).Error("user lookup failed")
			return nil, s.fail(req, nil, ErrBadCredentials)
		}
		user = u
		if !user.Enabled() {
			return nil, s.fail(req, user, ErrAccountDisabled)
		}

	case captcha.PasswordPath:
		if req.Username == "" || req.Password == "" {
			return nil, s.fail(req, nil, ErrEmptyCredentials)
		}
		u, err := s.userStore.GetByUsername(ctx, req.Username)
		if errors.Is(err, users.ErrNotFound) {
			// Same answer as a wrong password so usernames cannot be probed
			return nil, s.fail(req, nil, ErrBadCredentials)
		}
		if err != nil {
			s.logger.WithError(err).Error("user lookup failed")
			return nil, s.fail(req, nil, ErrBadCredentials)
		}
		user = u
		if !user.Enabled() {
			return nil, s.fail(req, user, ErrAccountDisabled)
		}
		if !users.CheckPassword(user.Password, req.Password) {
			return nil, s.fail(req, user, ErrBadCredentials)
		}
	}

	if err := s.checkCapacity(ctx); err != nil {
		return nil, s.fail(req, user, ErrCapacityReached)
	}

	return s.completeLogin(ctx, user, req)
}

// checkCapacity refuses logins once the online session count has reached the
// registered-user total. The ceiling tracks account creation; no static
// limit to tune. A count failure on either side does not block the login;
// the cap is advisory next to a dead database.
func (s *Service) checkCapacity(ctx context.Context) error {
	total, err := s.userStore.Count(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("user count unavailable, skipping capacity check")
		return nil
	}
	active, err := s.registry.CountActive(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("online count unavailable, skipping capacity check")
		return nil
	}
	if int64(active) >= total {
		return ErrCapacityReached
	}
	return nil
}

// completeLogin runs once the attempt is authorized: audit, token, then the
// best-effort cache and session bookkeeping.
func (s *Service) completeLogin(ctx context.Context, user *users.User, req LoginRequest) (*LoginResult, error) {
	uid := user.ID
	s.recorder.Record(loginlog.Entry{
		UserID:    &uid,
		Username:  user.Username,
		Status:    loginlog.StatusSuccess,
		Msg:       "login success",
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})
	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	}

	tok, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		s.logger.WithError(err).Error("token issuance failed")
		return nil, &Error{Code: httputil.CodeSystemError, Msg: "system error, please try again later"}
	}

	// Refresh the cached permission set: drop then repopulate. The loaded
	// slice also travels in the response; a cache failure must not strip it.
	if _, err := s.kv.Delete(ctx, kvstore.UserPermsKey(user.ID)); err != nil {
		s.logger.WithError(err).Warn("failed to drop permission cache")
	}
	perms, err := s.perms.PermsByUserID(ctx, user.ID)
	if err != nil {
		s.logger.WithError(err).Warn("failed to load permissions")
		perms = nil
	} else if len(perms) > 0 {
		if err := s.kv.SAdd(ctx, kvstore.UserPermsKey(user.ID), perms, kvstore.PermsTTL); err != nil {
			s.logger.WithError(err).Warn("failed to cache permissions")
		}
	}

	if err := s.kv.Set(ctx, kvstore.UserTokenKey(user.ID), tok, s.tokens.TTL()); err != nil {
		s.logger.WithError(err).Warn("failed to cache user token")
	}

	now := time.Now()
	sess := &session.Session{
		ID:         session.NewSessionID(),
		UserID:     user.ID,
		Username:   user.Username,
		Nickname:   user.Nickname,
		IP:         req.IP,
		Location:   session.ResolveLocation(req.IP),
		Browser:    session.ParseBrowser(req.UserAgent),
		OS:         session.ParseOS(req.UserAgent),
		Status:     session.StatusOnline,
		StartTime:  now,
		LastTime:   now,
		ExpireTime: now.Add(s.tokens.TTL()),
	}
	if err := s.registry.Add(ctx, sess); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("session registration failed")
	}

	if err := s.kv.Set(ctx, kvstore.SessionTokenKey(sess.ID), tok, kvstore.SessionTokenTTL); err != nil {
		s.logger.WithError(err).Warn("failed to map session to token")
	}

	result := &LoginResult{
		Token:       tok,
		UserID:      user.ID,
		Username:    user.Username,
		Nickname:    user.Nickname,
		Permissions: perms,
	}

	if req.RememberMe {
		rtok, err := s.issueRememberMe(ctx, user)
		if err != nil {
			s.logger.WithError(err).Warn("remember-me issuance failed")
		} else {
			result.RememberToken = rtok
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":    user.ID,
		"username":   user.Username,
		"session_id": sess.ID,
		"ip":         req.IP,
	}).Info("login succeeded")

	return result, nil
}

// Logout terminates the caller's session. Idempotent: unknown tokens and
// missing state all answer success, and cleanup failures are logged and
// swallowed. With a resolvable user id the token and permission cache
// entries are dropped first, then the session is found by the session_token
// reverse scan (falling back to evicting everything the user holds). A
// request carrying no identity at all is a no-op.
func (s *Service) Logout(ctx context.Context, tok string, userID int64) {
	defer func() {
		if s.metrics != nil {
			s.metrics.LogoutsTotal.Inc()
		}
	}()

	if userID == 0 && tok != "" {
		userID = s.tokens.UserIDFromToken(tok)
	}
	if userID == 0 {
		// Nothing identifies a session; there is nothing to clean
		return
	}

	// Revoke first: with these gone the token fails the middleware equality
	// check even if session cleanup below goes wrong
	if _, err := s.kv.Delete(ctx, kvstore.UserTokenKey(userID), kvstore.UserPermsKey(userID)); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("logout cache cleanup failed")
	}

	if tok != "" {
		if sid := s.findSessionByToken(ctx, tok); sid != "" {
			if err := s.registry.RemoveBySessionID(ctx, sid); err != nil {
				s.logger.WithError(err).WithField("session_id", sid).Warn("logout session removal failed")
			}
			return
		}
	}

	if err := s.registry.RemoveByUserID(ctx, userID, "logout"); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("logout eviction failed")
	}
}

// findSessionByToken scans session_token:* for the entry holding tok.
// Linear in the number of live sessions, which stays small in a back office.
func (s *Service) findSessionByToken(ctx context.Context, tok string) string {
	keys, err := s.kv.Keys(ctx, kvstore.SessionTokenPattern)
	if err != nil {
		s.logger.WithError(err).Warn("session token scan failed")
		return ""
	}
	for _, key := range keys {
		val, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		if val == tok {
			return kvstore.SessionIDFromTokenKey(key)
		}
	}
	return ""
}

// issueRememberMe mints a 30-day re-authentication token
func (s *Service) issueRememberMe(ctx context.Context, user *users.User) (string, error) {
	rtok := strings.ReplaceAll(uuid.New().String(), "-", "")
	val := fmt.Sprintf("%d:%s", user.ID, user.Username)
	if err := s.kv.Set(ctx, kvstore.RememberMeKey(rtok), val, kvstore.RememberMeTTL); err != nil {
		return "", fmt.Errorf("failed to store remember-me token: %w", err)
	}
	return rtok, nil
}

// RememberLogin re-authenticates with a remember-me token. The account still
// has to exist and be enabled; the capacity check applies as on a normal
// login.
func (s *Service) RememberLogin(ctx context.Context, rtok, ip, userAgent string) (*LoginResult, error) {
	val, err := s.kv.Get(ctx, kvstore.RememberMeKey(rtok))
	if err != nil {
		return nil, ErrRememberMeInvalid
	}

	idStr, username, found := strings.Cut(val, ":")
	if !found {
		return nil, ErrRememberMeInvalid
	}
	var userID int64
	if _, err := fmt.Sscanf(idStr, "%d", &userID); err != nil || userID == 0 {
		return nil, ErrRememberMeInvalid
	}

	req := LoginRequest{Username: username, IP: ip, UserAgent: userAgent}

	user, err := s.userStore.GetByID(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, s.fail(req, nil, ErrUserNotFound)
	}
	if err != nil {
		s.logger.WithError(err).Error("user lookup failed")
		return nil, s.fail(req, nil, ErrRememberMeInvalid)
	}
	if !user.Enabled() {
		return nil, s.fail(req, user, ErrAccountDisabled)
	}
	if err := s.checkCapacity(ctx); err != nil {
		return nil, s.fail(req, user, ErrCapacityReached)
	}

	return s.completeLogin(ctx, user, req)
}
