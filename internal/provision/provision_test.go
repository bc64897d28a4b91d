package provision

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/multierr"

	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
	"github.com/cyberchip-wang/s3uploader-ui/internal/testutil"
)

func TestCreateFolder(t *testing.T) {
	mem := testutil.NewMemoryBackend()
	client := storage.ForIdentity(mem, "alice")

	key, err := CreateFolder(context.Background(), client, "alice", paths.FolderInput)
	if err != nil {
		t.Fatal(err)
	}
	if key != "alice/input/" {
		t.Errorf("key = %q", key)
	}
	puts := mem.Calls("put")
	if len(puts) != 1 {
		t.Fatalf("got %d puts, want 1", len(puts))
	}
	if puts[0].Key != "protected/alice/alice/input/" {
		t.Errorf("physical key = %q", puts[0].Key)
	}
	if len(puts[0].Body) != 0 {
		t.Errorf("marker body has %d bytes", len(puts[0].Body))
	}
}

func TestCreateFolderValidation(t *testing.T) {
	mem := testutil.NewMemoryBackend()
	client := storage.ForIdentity(mem, "alice")
	ctx := context.Background()

	tests := []struct {
		name   string
		client storage.Client
		user   string
		folder paths.FolderType
	}{
		{"nil client", nil, "alice", paths.FolderInput},
		{"empty user", client, "", paths.FolderInput},
		{"bad folder", client, "alice", "documents"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateFolder(ctx, tt.client, tt.user, tt.folder)
			if !errors.Is(err, paths.ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
	if n := len(mem.Calls("")); n != 0 {
		t.Errorf("backend called %d times on invalid input", n)
	}
}

func TestCreateFolderPropagatesBackendError(t *testing.T) {
	denied := errors.New("access denied")
	mem := testutil.NewMemoryBackend()
	mem.PutHook = func(string) error { return denied }

	_, err := CreateFolder(context.Background(), storage.ForIdentity(mem, "alice"), "alice", paths.FolderOutput)
	if !errors.Is(err, denied) {
		t.Errorf("err = %v, want %v", err, denied)
	}
}

func TestEnsureUserFolders(t *testing.T) {
	mem := testutil.NewMemoryBackend()
	if err := New().EnsureUserFolders(context.Background(), storage.ForIdentity(mem, "alice"), "alice"); err != nil {
		t.Fatal(err)
	}
	puts := mem.Calls("put")
	if len(puts) != 2 {
		t.Fatalf("got %d puts, want 2", len(puts))
	}
	want := []string{"protected/alice/alice/input/", "protected/alice/alice/output/"}
	for i, p := range puts {
		if p.Key != want[i] || len(p.Body) != 0 {
			t.Errorf("put %d = %q (%d bytes), want %q (0 bytes)", i, p.Key, len(p.Body), want[i])
		}
	}
}

func TestEnsureUserFoldersAttemptsBoth(t *testing.T) {
	first := errors.New("input failed")
	mem := testutil.NewMemoryBackend()
	mem.PutHook = func(key string) error {
		if key == "protected/alice/alice/input/" {
			return first
		}
		return nil
	}

	err := New().EnsureUserFolders(context.Background(), storage.ForIdentity(mem, "alice"), "alice")
	if !errors.Is(err, first) {
		t.Fatalf("err = %v, want %v", err, first)
	}
	if n := len(multierr.Errors(err)); n != 1 {
		t.Errorf("combined %d errors, want 1", n)
	}
	if len(mem.Calls("put")) != 2 {
		t.Error("output folder not attempted after input failure")
	}
	if !mem.Has("protected/alice/alice/output/") {
		t.Error("output marker missing")
	}
}
