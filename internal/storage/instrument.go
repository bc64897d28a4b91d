package storage

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metrics"
)

// instrumented records metrics and debug logs around every Backend call.
type instrumented struct {
	Backend
}

// Instrument wraps b so that each operation is timed and counted.
func Instrument(b Backend) Backend {
	if _, ok := b.(*instrumented); ok {
		return b
	}
	return &instrumented{Backend: b}
}

func (b *instrumented) record(ctx context.Context, op, key string, start time.Time, err error) {
	metrics.RecordStorageOperation(b.Type(), op, time.Since(start), err == nil)
	log := logging.WithContext(ctx)
	if err != nil {
		log.Warn("storage operation failed",
			zap.String("backend", b.Type()),
			zap.String("operation", op),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	log.Debug("storage operation",
		zap.String("backend", b.Type()),
		zap.String("operation", op),
		zap.String("key", key),
		zap.Duration("duration", time.Since(start)))
}

func (b *instrumented) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	start := time.Now()
	err := b.Backend.PutObject(ctx, key, body, size, contentType)
	b.record(ctx, "put_object", key, start, err)
	return err
}

func (b *instrumented) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	start := time.Now()
	objects, err := b.Backend.ListObjects(ctx, prefix)
	b.record(ctx, "list_objects", prefix, start, err)
	return objects, err
}

func (b *instrumented) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	start := time.Now()
	u, err := b.Backend.PresignGet(ctx, key, expires)
	b.record(ctx, "presign_get", key, start, err)
	return u, err
}

func (b *instrumented) DeleteObject(ctx context.Context, key string) error {
	start := time.Now()
	err := b.Backend.DeleteObject(ctx, key)
	b.record(ctx, "delete_object", key, start, err)
	return err
}

// Unwrap returns the wrapped backend.
func (b *instrumented) Unwrap() Backend { return b.Backend }

// AsContentServer reports whether b, or the backend it wraps, serves its own
// download content.
func AsContentServer(b Backend) (ContentServer, bool) {
	if w, ok := b.(interface{ Unwrap() Backend }); ok {
		b = w.Unwrap()
	}
	cs, ok := b.(ContentServer)
	return cs, ok
}
