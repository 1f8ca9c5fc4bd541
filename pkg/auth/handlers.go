package auth

import (
	"errors"
	"net/http"

	"github.com/stewardhq/steward/pkg/captcha"
	"github.com/stewardhq/steward/pkg/contextkeys"
	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/observability"
)

// Handlers exposes the auth flows over HTTP
type Handlers struct {
	service *Service
	logger  *observability.Logger
}

// NewHandlers creates auth handlers
func NewHandlers(service *Service, logger *observability.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

type loginBody struct {
	Username   string             `json:"username"`
	Password   string             `json:"password"`
	RememberMe bool               `json:"rememberMe"`
	Captcha    *captcha.Assertion `json:"captcha,omitempty"`
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *Error
	if errors.As(err, &authErr) {
		httputil.WriteCode(w, r, authErr.Code, authErr.Msg)
		return
	}
	httputil.WriteSystemError(w, r)
}

// Login handles POST /api/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	result, err := h.service.Login(r.Context(), LoginRequest{
		Username:   body.Username,
		Password:   body.Password,
		RememberMe: body.RememberMe,
		Captcha:    body.Captcha,
		IP:         httputil.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// Logout handles DELETE /api/logout. Always answers success.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	tok := httputil.BearerToken(r)
	userID := contextkeys.GetUserID(r.Context())

	h.service.Logout(r.Context(), tok, userID)
	httputil.WriteSuccess(w, nil)
}

// RememberLogin handles POST /api/login/remember
func (h *Handlers) RememberLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RememberToken string `json:"rememberToken"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if !httputil.RequireNonEmpty(w, r, body.RememberToken, "rememberToken") {
		return
	}

	result, err := h.service.RememberLogin(r.Context(), body.RememberToken, httputil.ClientIP(r), r.UserAgent())
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, result)
}
