package storage_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
	"github.com/cyberchip-wang/s3uploader-ui/internal/testutil"
)

func TestIdentityClientScopesProtectedKeys(t *testing.T) {
	ctx := context.Background()
	mem := testutil.NewMemoryBackend()
	c := storage.ForIdentity(storage.Instrument(mem), "alice")

	opts := storage.Options{Level: storage.LevelProtected}
	if err := c.Put(ctx, "alice/input/", nil, opts); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "alice/input/a.txt", strings.NewReader("hello"), opts); err != nil {
		t.Fatal(err)
	}

	if !mem.Has("protected/alice/alice/input/a.txt") {
		t.Fatal("object not stored under the protected prefix")
	}
	if got := mem.Bytes("protected/alice/alice/input/"); len(got) != 0 {
		t.Errorf("marker has %d bytes, want 0", len(got))
	}

	res, err := c.List(ctx, "alice/input/", opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("got %d results, want 2 (marker + file)", len(res.Results))
	}
	if res.Results[0].Key != "alice/input/" || res.Results[1].Key != "alice/input/a.txt" {
		t.Errorf("keys not relative to level: %q, %q", res.Results[0].Key, res.Results[1].Key)
	}
	if *res.Results[1].Size != 5 {
		t.Errorf("size = %d", *res.Results[1].Size)
	}

	url, err := c.Get(ctx, "alice/input/a.txt", opts)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(url, "protected/alice/alice/input/a.txt") || !strings.Contains(url, "15m0s") {
		t.Errorf("url = %q", url)
	}

	if err := c.Remove(ctx, "alice/input/a.txt", opts); err != nil {
		t.Fatal(err)
	}
	if mem.Has("protected/alice/alice/input/a.txt") {
		t.Error("object still present after remove")
	}
}

func TestIdentityClientLevels(t *testing.T) {
	c := storage.ForIdentity(testutil.NewMemoryBackend(), "bob")
	tests := []struct {
		level   storage.Level
		want    string
		wantErr bool
	}{
		{storage.LevelPublic, "public/k", false},
		{storage.LevelProtected, "protected/bob/k", false},
		{storage.LevelPrivate, "private/bob/k", false},
		{"", "", true},
		{"shared", "", true},
	}
	for _, tt := range tests {
		got, err := c.PhysicalKey("k", tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("PhysicalKey(%q) err = %v", tt.level, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PhysicalKey(%q) = %q, want %q", tt.level, got, tt.want)
		}
	}

	anon := storage.ForIdentity(testutil.NewMemoryBackend(), "")
	if _, err := anon.PhysicalKey("k", storage.LevelProtected); err == nil {
		t.Error("protected level without identity should fail")
	}
}

func TestListDoesNotLeakOtherIdentities(t *testing.T) {
	ctx := context.Background()
	mem := testutil.NewMemoryBackend()
	mem.Seed("protected/alice/alice/input/a.txt", []byte("a"))
	mem.Seed("protected/alice2/alice2/input/b.txt", []byte("b"))

	res, err := storage.ForIdentity(mem, "alice").List(ctx, "", storage.Options{Level: storage.LevelProtected})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 1 || res.Results[0].Key != "alice/input/a.txt" {
		t.Errorf("results = %+v", res.Results)
	}
}

func TestAsContentServer(t *testing.T) {
	if _, ok := storage.AsContentServer(storage.Instrument(testutil.NewMemoryBackend())); ok {
		t.Error("memory backend does not serve content")
	}
}
