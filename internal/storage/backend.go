// Package storage defines the object storage contract used by the uploader:
// a Backend for raw object I/O and a Client that scopes keys by access level
// for one identity.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes a stored object. LastModified and Size are nil when
// the backend did not report them.
type ObjectInfo struct {
	Key          string
	LastModified *time.Time
	Size         *int64
}

// Backend is the interface for content storage backends.
// Implementations handle raw object I/O against physical keys (S3, MinIO,
// local filesystem).
type Backend interface {
	// PutObject uploads content to the given key. size is -1 when unknown.
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// ListObjects returns every object whose key starts with prefix,
	// including a marker object equal to the prefix itself.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// PresignGet returns a URL that retrieves key until expires elapses.
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)

	// DeleteObject removes an object by key.
	DeleteObject(ctx context.Context, key string) error

	// Type returns the backend type identifier ("s3", "minio", "local").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// ContentServer is implemented by backends whose download references point
// back at this server instead of at the object store. OpenSigned verifies a
// token issued by PresignGet and opens the object it names.
type ContentServer interface {
	OpenSigned(ctx context.Context, token string) (io.ReadCloser, ObjectInfo, error)
}
