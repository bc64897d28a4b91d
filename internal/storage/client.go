package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Level is the access level an object is stored under.
type Level string

const (
	// LevelPublic objects are readable by every signed-in user.
	LevelPublic Level = "public"
	// LevelProtected objects belong to one identity; other identities may
	// read them by naming the owner.
	LevelProtected Level = "protected"
	// LevelPrivate objects are reachable only by their owner.
	LevelPrivate Level = "private"
)

// DefaultDownloadExpiry is how long a retrieval reference stays valid when
// Options.Expires is zero.
const DefaultDownloadExpiry = 15 * time.Minute

// Options scope a single Client call.
type Options struct {
	Level Level

	// Put only.
	ContentType string
	Size        int64 // -1 or 0 with a nil body both mean "unknown / empty"

	// Get only.
	Expires time.Duration
}

// ListResult is the response of Client.List.
type ListResult struct {
	Results []ObjectInfo
}

// Client is the level-scoped storage surface the application consumes:
// put, list, get and remove against logical keys.
type Client interface {
	Put(ctx context.Context, key string, body io.Reader, opts Options) error
	List(ctx context.Context, prefix string, opts Options) (*ListResult, error)
	Get(ctx context.Context, key string, opts Options) (string, error)
	Remove(ctx context.Context, key string, opts Options) error
}

// IdentityClient is a Client bound to one identity over a Backend.
type IdentityClient struct {
	backend  Backend
	identity string
}

var _ Client = (*IdentityClient)(nil)

// ForIdentity returns a Client that stores objects of identity in backend.
func ForIdentity(backend Backend, identity string) *IdentityClient {
	return &IdentityClient{backend: backend, identity: identity}
}

// Identity returns the identity the client acts for.
func (c *IdentityClient) Identity() string { return c.identity }

// levelPrefix returns the physical key prefix for a level.
func (c *IdentityClient) levelPrefix(level Level) (string, error) {
	switch level {
	case LevelPublic:
		return "public/", nil
	case LevelProtected, LevelPrivate:
		if c.identity == "" {
			return "", fmt.Errorf("%s level requires an identity", level)
		}
		return string(level) + "/" + c.identity + "/", nil
	case "":
		return "", fmt.Errorf("access level is required")
	default:
		return "", fmt.Errorf("unknown access level %q", level)
	}
}

// PhysicalKey maps a logical key to the backend key for level.
func (c *IdentityClient) PhysicalKey(key string, level Level) (string, error) {
	prefix, err := c.levelPrefix(level)
	if err != nil {
		return "", err
	}
	return prefix + key, nil
}

// Put stores body under key.
func (c *IdentityClient) Put(ctx context.Context, key string, body io.Reader, opts Options) error {
	physical, err := c.PhysicalKey(key, opts.Level)
	if err != nil {
		return err
	}
	size := opts.Size
	if body == nil {
		body = strings.NewReader("")
		size = 0
	}
	return c.backend.PutObject(ctx, physical, body, size, opts.ContentType)
}

// List returns every object under prefix with keys relative to the level.
// The marker object for prefix itself is included.
func (c *IdentityClient) List(ctx context.Context, prefix string, opts Options) (*ListResult, error) {
	levelPrefix, err := c.levelPrefix(opts.Level)
	if err != nil {
		return nil, err
	}
	objects, err := c.backend.ListObjects(ctx, levelPrefix+prefix)
	if err != nil {
		return nil, err
	}
	results := make([]ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		obj.Key = strings.TrimPrefix(obj.Key, levelPrefix)
		results = append(results, obj)
	}
	return &ListResult{Results: results}, nil
}

// Get returns a time-scoped URL for key.
func (c *IdentityClient) Get(ctx context.Context, key string, opts Options) (string, error) {
	physical, err := c.PhysicalKey(key, opts.Level)
	if err != nil {
		return "", err
	}
	expires := opts.Expires
	if expires <= 0 {
		expires = DefaultDownloadExpiry
	}
	return c.backend.PresignGet(ctx, physical, expires)
}

// Remove deletes key.
func (c *IdentityClient) Remove(ctx context.Context, key string, opts Options) error {
	physical, err := c.PhysicalKey(key, opts.Level)
	if err != nil {
		return err
	}
	return c.backend.DeleteObject(ctx, physical)
}
