package files

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/observability"
)

const maxUploadBytes = 32 << 20 // 32 MiB

// Handlers exposes upload and download endpoints
type Handlers struct {
	storage Storage
	logger  *observability.Logger
}

// NewHandlers creates file handlers
func NewHandlers(storage Storage, logger *observability.Logger) *Handlers {
	return &Handlers{storage: storage, logger: logger}
}

// Upload handles POST /api/files (multipart form, field "file").
// Keys are date-partitioned with a random component so uploads never collide.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteParamError(w, r, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteParamError(w, r, "file field is required")
		return
	}
	defer file.Close()

	key := fmt.Sprintf("%s/%s%s",
		time.Now().Format("2006/01/02"),
		uuid.New().String(),
		path.Ext(header.Filename),
	)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.storage.Put(r.Context(), key, file, contentType); err != nil {
		h.logger.WithError(err).WithField("key", key).Error("upload failed")
		httputil.WriteSystemError(w, r)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"key":  key,
		"name": header.Filename,
		"size": header.Size,
	}).Info("file uploaded")

	httputil.WriteSuccess(w, map[string]string{"key": key, "name": header.Filename})
}

// Download handles GET /api/files/{key:.*}
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "key")
	if !ok {
		return
	}

	reader, contentType, err := h.storage.Get(r.Context(), key)
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFound(w, r, "file not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("key", key).Error("download failed")
		httputil.WriteSystemError(w, r)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.WithError(err).WithField("key", key).Warn("download interrupted")
	}
}
