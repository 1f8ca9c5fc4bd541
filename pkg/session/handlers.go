package session

import (
	"net/http"

	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/observability"
)

// Handlers exposes online-user administration to the back office
type Handlers struct {
	registry *Registry
	logger   *observability.Logger
}

// NewHandlers creates session admin handlers
func NewHandlers(registry *Registry, logger *observability.Logger) *Handlers {
	return &Handlers{registry: registry, logger: logger}
}

// List handles GET /api/system/online-users
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	pageNum, pageSize := httputil.ParsePagination(r)
	username := httputil.ParseQueryString(r, "username", "")
	ip := httputil.ParseQueryString(r, "ip", "")

	sessions, total, err := h.registry.List(r.Context(), username, ip, pageNum, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("failed to list online users")
		httputil.WriteSystemError(w, r)
		return
	}

	if sessions == nil {
		sessions = []*Session{}
	}
	httputil.WritePaged(w, sessions, httputil.Page{PageNum: pageNum, PageSize: pageSize, Total: total})
}

// Kickout handles DELETE /api/system/online-users/{sessionId}
func (h *Handlers) Kickout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := httputil.ParsePathStringOrError(w, r, "sessionId")
	if !ok {
		return
	}

	if err := h.registry.RemoveBySessionID(r.Context(), sessionID); err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("kickout failed")
		httputil.WriteSystemError(w, r)
		return
	}

	h.logger.WithField("session_id", sessionID).Info("session kicked out")
	httputil.WriteSuccess(w, nil)
}

// BatchKickout handles POST /api/system/online-users/kickout.
// Each id is evicted independently; one failure does not stop the rest.
func (h *Handlers) BatchKickout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionIDs []string `json:"sessionIds"`
	}
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if len(body.SessionIDs) == 0 {
		httputil.WriteParamError(w, r, "sessionIds is required")
		return
	}

	var failed []string
	for _, id := range body.SessionIDs {
		if err := h.registry.RemoveBySessionID(r.Context(), id); err != nil {
			h.logger.WithError(err).WithField("session_id", id).Error("kickout failed")
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		httputil.WriteBizError(w, r, "some sessions could not be removed")
		return
	}
	httputil.WriteSuccess(w, map[string]int{"kicked": len(body.SessionIDs)})
}
