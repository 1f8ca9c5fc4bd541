package loginlog

import (
	"net/http"

	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/observability"
)

// Handlers exposes the login log to the back office
type Handlers struct {
	store  *Store
	logger *observability.Logger
}

// NewHandlers creates login log handlers
func NewHandlers(store *Store, logger *observability.Logger) *Handlers {
	return &Handlers{store: store, logger: logger}
}

// List handles GET /api/system/login-logs
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	pageNum, pageSize := httputil.ParsePagination(r)
	username := httputil.ParseQueryString(r, "username", "")

	entries, total, err := h.store.List(r.Context(), username, pageNum, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("failed to list login logs")
		httputil.WriteSystemError(w, r)
		return
	}

	if entries == nil {
		entries = []*Entry{}
	}
	httputil.WritePaged(w, entries, httputil.Page{PageNum: pageNum, PageSize: pageSize, Total: total})
}
