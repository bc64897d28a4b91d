package factory

import (
	"context"
	"testing"

	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage/local"
)

func TestNewLocal(t *testing.T) {
	b, err := New(context.Background(), Config{
		Type: "local",
		Local: local.Config{
			RootPath:      t.TempDir(),
			SigningSecret: "secret",
			PublicURL:     "http://localhost:8080",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.Type() != "local" {
		t.Errorf("Type() = %q", b.Type())
	}
	if _, ok := storage.AsContentServer(b); !ok {
		t.Error("instrumented local backend should still serve content")
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := New(context.Background(), Config{Type: "ftp"}); err == nil {
		t.Error("unknown type accepted")
	}
}
