// Package minio provides a storage backend built on minio-go.
package minio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
)

// Config holds MinIO connection settings. Endpoint may carry an http(s)
// scheme; it is stripped and used to infer UseSSL when present.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Backend implements storage.Backend with a minio client.
type Backend struct {
	client *minio.Client
	bucket string
}

var _ storage.Backend = (*Backend)(nil)

// normalizeEndpoint strips the scheme minio.New does not accept.
func normalizeEndpoint(endpoint string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), false
	default:
		return strings.TrimPrefix(endpoint, "//"), useSSL
	}
}

// New creates a new MinIO backend and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket must be provided")
	}

	endpoint, secure := normalizeEndpoint(strings.TrimRight(cfg.Endpoint, "/"), cfg.UseSSL)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	b := &Backend{client: client, bucket: cfg.Bucket}
	if err := b.ensureBucket(ctx, cfg.Region); err != nil {
		logging.Error("bucket check failed", zap.Error(err))
	}
	return b, nil
}

func (b *Backend) ensureBucket(ctx context.Context, region string) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", b.bucket, err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", b.bucket, err)
	}
	logging.Info("created MinIO bucket", zap.String("bucket", b.bucket))
	return nil
}

// PutObject uploads content.
func (b *Backend) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// ListObjects lists all objects under prefix recursively.
func (b *Backend) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, obj.Err)
		}
		size := obj.Size
		mod := obj.LastModified
		info := storage.ObjectInfo{Key: obj.Key, Size: &size}
		if !mod.IsZero() {
			info.LastModified = &mod
		}
		out = append(out, info)
	}
	return out, nil
}

// PresignGet returns a presigned GET URL.
func (b *Backend) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, expires, nil)
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return u.String(), nil
}

// DeleteObject removes an object.
func (b *Backend) DeleteObject(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("delete object %s: %w", key, storage.ErrNotFound)
		}
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Type returns "minio".
func (b *Backend) Type() string { return "minio" }

// Close is a no-op for MinIO backends.
func (b *Backend) Close() error { return nil }
