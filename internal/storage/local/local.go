// Package local provides a local filesystem storage backend.
//
// Keys map to files under RootPath. A key ending in "/" is a folder marker
// and is stored as a zero-byte markerName file inside that directory.
// Download references are signed links back to this server's content
// endpoint.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
)

const (
	markerName  = ".folder"
	tokenIssuer = "s3uploader-local"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string
	CreateDirs bool
	// PublicURL is the externally visible base URL of the server.
	PublicURL string
	// SigningSecret signs download links.
	SigningSecret string
}

// Backend implements storage.Backend using the local filesystem.
type Backend struct {
	rootPath   string
	createDirs bool
	publicURL  string
	secret     []byte
	now        func() time.Time
}

var (
	_ storage.Backend       = (*Backend)(nil)
	_ storage.ContentServer = (*Backend)(nil)
)

// New creates a new local filesystem backend.
func New(cfg Config) (*Backend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root path is required")
	}
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	root, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	return &Backend{
		rootPath:   root,
		createDirs: cfg.CreateDirs,
		publicURL:  strings.TrimRight(cfg.PublicURL, "/"),
		secret:     []byte(cfg.SigningSecret),
		now:        time.Now,
	}, nil
}

// fullPath maps key to a file path inside the root.
func (b *Backend) fullPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	for _, seg := range strings.Split(strings.TrimSuffix(key, "/"), "/") {
		if seg == ".." || seg == "." || seg == markerName {
			return "", fmt.Errorf("invalid key %q", key)
		}
	}
	rel := filepath.FromSlash(key)
	if strings.HasSuffix(key, "/") {
		rel = filepath.Join(rel, markerName)
	}
	p := filepath.Join(b.rootPath, rel)
	if !strings.HasPrefix(p, b.rootPath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return p, nil
}

// keyFor maps a file path inside the root back to its key.
func (b *Backend) keyFor(path string) (string, error) {
	rel, err := filepath.Rel(b.rootPath, path)
	if err != nil {
		return "", err
	}
	key := filepath.ToSlash(rel)
	if filepath.Base(path) == markerName {
		key = strings.TrimSuffix(key, markerName)
	}
	return key, nil
}

// PutObject writes content to the local filesystem atomically.
func (b *Backend) PutObject(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	path, err := b.fullPath(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)

	if b.createDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", key, err)
		}
	}

	// Write to temp file then rename for atomicity
	tmp, err := os.CreateTemp(dir, ".s3uploader-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}
	return nil
}

// ListObjects walks the directory that holds prefix and returns every key
// starting with prefix, sorted.
func (b *Backend) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	// Walk from the deepest directory fully named by the prefix.
	start := b.rootPath
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		p, err := b.fullPath(prefix[:i+1])
		if err != nil {
			return nil, err
		}
		start = filepath.Dir(p)
	}

	var out []storage.ObjectInfo
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".s3uploader-") {
			return nil
		}
		key, err := b.keyFor(path)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size := info.Size()
		mod := info.ModTime()
		out = append(out, storage.ObjectInfo{Key: key, Size: &size, LastModified: &mod})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

type downloadClaims struct {
	jwt.RegisteredClaims
}

// PresignGet returns a signed link to the server's content endpoint.
func (b *Backend) PresignGet(_ context.Context, key string, expires time.Duration) (string, error) {
	path, err := b.fullPath(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("presign %s: %w", key, storage.ErrNotFound)
		}
		return "", fmt.Errorf("stat %s: %w", key, err)
	}

	now := b.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, downloadClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expires)),
		},
	})
	signed, err := token.SignedString(b.secret)
	if err != nil {
		return "", fmt.Errorf("sign download link: %w", err)
	}
	return b.publicURL + "/content/" + url.PathEscape(signed), nil
}

// OpenSigned verifies a download token and opens the object it names.
func (b *Backend) OpenSigned(_ context.Context, token string) (io.ReadCloser, storage.ObjectInfo, error) {
	claims := &downloadClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return b.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return nil, storage.ObjectInfo{}, fmt.Errorf("invalid download link: %w", err)
	}

	key := claims.Subject
	path, err := b.fullPath(key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ObjectInfo{Key: key}, fmt.Errorf("open %s: %w", key, storage.ErrNotFound)
		}
		return nil, storage.ObjectInfo{Key: key}, fmt.Errorf("open %s: %w", key, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, storage.ObjectInfo{Key: key}, fmt.Errorf("stat %s: %w", key, err)
	}
	size := st.Size()
	mod := st.ModTime()
	return f, storage.ObjectInfo{Key: key, Size: &size, LastModified: &mod}, nil
}

// DeleteObject removes a file from the local filesystem.
func (b *Backend) DeleteObject(_ context.Context, key string) error {
	path, err := b.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", key, storage.ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Type returns "local".
func (b *Backend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *Backend) Close() error { return nil }
