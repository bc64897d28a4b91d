// Package factory builds the configured storage backend.
package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage/local"
	miniobackend "github.com/cyberchip-wang/s3uploader-ui/internal/storage/minio"
	s3backend "github.com/cyberchip-wang/s3uploader-ui/internal/storage/s3"
)

// Config selects a backend type and carries the settings for each.
type Config struct {
	// Type is one of "s3", "minio" or "local".
	Type  string
	S3    s3backend.Config
	Local local.Config
}

// New creates the backend named by cfg.Type, wrapped with metrics and
// logging.
func New(ctx context.Context, cfg Config) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Type {
	case "s3":
		b, err = s3backend.New(ctx, cfg.S3)
	case "minio":
		b, err = miniobackend.New(ctx, miniobackend.Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			UseSSL:    cfg.S3.UseSSL,
		})
	case "local":
		b, err = local.New(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s backend: %w", cfg.Type, err)
	}

	logging.Info("storage backend ready", zap.String("type", b.Type()))
	return storage.Instrument(b), nil
}
