// Package storage abstracts the blob store holding uploaded payloads and job
// result documents.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/pkg/logger"
	"github.com/kohlhaas/docintel/pkg/storage/minio"
	"github.com/kohlhaas/docintel/pkg/storage/s3"
)

// Backend selects a storage implementation.
type Backend string

const (
	BackendS3    Backend = "s3"
	BackendMinio Backend = "minio"
)

// Storage stores and retrieves blobs by key.
type Storage interface {
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// CleanupBefore removes objects last modified before the threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// New creates the configured storage backend.
func New(backend Backend, log logger.Logger) (Storage, error) {
	switch backend {
	case BackendS3:
		return s3.NewStorage(log)
	case BackendMinio:
		return minio.NewStorage(log)
	default:
		return nil, errdef.Newf(errdef.KindValidation, "unknown storage backend %q", backend)
	}
}
