// Package testutil provides an in-memory storage backend for tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
)

// Call records one backend invocation.
type Call struct {
	Op   string
	Key  string
	Body []byte
}

// MemoryBackend implements storage.Backend over a map. The hook fields inject
// failures or block calls; they run before the operation touches the map.
type MemoryBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	modTime map[string]time.Time
	calls   []Call

	PutHook    func(key string) error
	ListHook   func(ctx context.Context, prefix string) error
	DeleteHook func(key string) error
	GetHook    func(key string) error
}

var _ storage.Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects: make(map[string][]byte),
		modTime: make(map[string]time.Time),
	}
}

func (m *MemoryBackend) record(c Call) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

// Calls returns a copy of the recorded calls, optionally filtered by op.
func (m *MemoryBackend) Calls(op string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Seed stores an object directly, bypassing hooks and call recording.
func (m *MemoryBackend) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.modTime[key] = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

// Has reports whether key exists.
func (m *MemoryBackend) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *MemoryBackend) PutObject(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.record(Call{Op: "put", Key: key, Body: data})
	if m.PutHook != nil {
		if err := m.PutHook(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.modTime[key] = time.Now()
	return nil
}

func (m *MemoryBackend) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.record(Call{Op: "list", Key: prefix})
	if m.ListHook != nil {
		if err := m.ListHook(ctx, prefix); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for key, data := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		size := int64(len(data))
		mod := m.modTime[key]
		out = append(out, storage.ObjectInfo{Key: key, Size: &size, LastModified: &mod})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryBackend) PresignGet(_ context.Context, key string, expires time.Duration) (string, error) {
	m.record(Call{Op: "get", Key: key})
	if m.GetHook != nil {
		if err := m.GetHook(key); err != nil {
			return "", err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", storage.ErrNotFound
	}
	return "https://objects.test/" + key + "?expires=" + expires.String(), nil
}

func (m *MemoryBackend) DeleteObject(_ context.Context, key string) error {
	m.record(Call{Op: "remove", Key: key})
	if m.DeleteHook != nil {
		if err := m.DeleteHook(key); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.objects, key)
	delete(m.modTime, key)
	return nil
}

func (m *MemoryBackend) Type() string { return "memory" }

func (m *MemoryBackend) Close() error { return nil }

// Bytes returns a copy of the stored object.
func (m *MemoryBackend) Bytes(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.objects[key])
}
