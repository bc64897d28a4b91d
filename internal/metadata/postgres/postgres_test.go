package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cyberchip-wang/s3uploader-ui/internal/auth"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := New(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrations.ReadFile("migrations/001_users.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("empty migration")
	}
}

func TestUserLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	name := fmt.Sprintf("test-%d", time.Now().UnixNano())

	u, err := s.CreateUser(ctx, name, "hash", false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.DB().Exec(`DELETE FROM users WHERE id = $1`, u.ID) })

	if _, err := s.CreateUser(ctx, name, "hash", false); !errors.Is(err, auth.ErrUserExists) {
		t.Errorf("duplicate: err = %v", err)
	}
	got, err := s.GetUser(ctx, name)
	if err != nil || got.ID != u.ID || got.PasswordHash != "hash" {
		t.Errorf("GetUser = %+v, %v", got, err)
	}
	if _, err := s.GetUser(ctx, name+"-missing"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("missing: err = %v", err)
	}

	hash := "h-" + name
	if err := s.RecordToken(ctx, u.ID, "laptop", hash, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if revoked, err := s.IsTokenRevoked(ctx, hash); err != nil || revoked {
		t.Errorf("fresh token revoked = %v, %v", revoked, err)
	}
	if err := s.RevokeToken(ctx, hash); err != nil {
		t.Fatal(err)
	}
	if revoked, err := s.IsTokenRevoked(ctx, hash); err != nil || !revoked {
		t.Errorf("revoked = %v, %v", revoked, err)
	}
}
