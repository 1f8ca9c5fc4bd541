package settings

import "context"

// CaptchaToggle adapts the settings table to the login captcha gate. The
// default applies when the key is missing or unreadable.
type CaptchaToggle struct {
	svc        *Service
	defaultVal bool
}

// NewCaptchaToggle creates the toggle
func NewCaptchaToggle(svc *Service, defaultVal bool) *CaptchaToggle {
	return &CaptchaToggle{svc: svc, defaultVal: defaultVal}
}

// CaptchaEnabled reports whether login requires captcha right now
func (t *CaptchaToggle) CaptchaEnabled(ctx context.Context) bool {
	return t.svc.GetBool(ctx, KeyCaptchaLoginEnabled, t.defaultVal)
}
