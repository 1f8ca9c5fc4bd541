// Package files provides the object storage abstraction for back-office
// uploads, with S3-compatible and local filesystem backends.
package files

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/stewardhq/steward/pkg/config"
)

// ErrNotFound is returned when an object key does not exist
var ErrNotFound = errors.New("files: object not found")

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType"`
	LastModified time.Time `json:"lastModified"`
}

// Storage is the object store interface
type Storage interface {
	// Put stores content under key, replacing any existing object
	Put(ctx context.Context, key string, content io.Reader, contentType string) error
	// Get returns a reader over the object; caller closes it
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	// Delete removes an object; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
	// List returns objects under a key prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// NewStorage creates the backend selected by configuration
func NewStorage(cfg config.FilesConfig) (Storage, error) {
	switch cfg.Type {
	case "s3":
		return NewS3Storage(cfg)
	case "filesystem":
		return NewFilesystemStorage(cfg.FilesystemRoot)
	default:
		return nil, errors.New("files: unknown storage type " + cfg.Type)
	}
}
