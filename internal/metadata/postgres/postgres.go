// Package postgres provides a PostgreSQL-backed user and device token store.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/auth"
	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// uniqueViolation is the PostgreSQL error code for a unique constraint.
const uniqueViolation = "23505"

// Store is a PostgreSQL user store.
type Store struct {
	db *sql.DB
}

var _ auth.UserStore = (*Store)(nil)

// New opens databaseURL and checks the connection.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate runs the embedded migrations in name order. Every migration is
// idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		logging.Info("running migration", zap.String("file", path.Base(f)))
		content, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*auth.User, error) {
	var u auth.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password, is_admin, created_at FROM users WHERE username = $1`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (*auth.User, error) {
	u := auth.User{Username: username, PasswordHash: passwordHash, IsAdmin: isAdmin}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password, is_admin) VALUES ($1, $2, $3) RETURNING id, created_at`,
		username, passwordHash, isAdmin).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, auth.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]auth.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, password, is_admin, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		var u auth.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (s *Store) RecordToken(ctx context.Context, userID int64, deviceName, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_tokens (user_id, device_name, token_hash, expires_at) VALUES ($1, $2, $3, $4)`,
		userID, deviceName, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("insert device token: %w", err)
	}
	return nil
}

// RevokeToken marks tokenHash revoked. Untracked tokens (OIDC) are inserted
// as revoked.
func (s *Store) RevokeToken(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_tokens (token_hash, device_name, revoked) VALUES ($1, 'oidc', TRUE)
		 ON CONFLICT (token_hash) DO UPDATE SET revoked = TRUE`,
		tokenHash)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Store) IsTokenRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT revoked FROM device_tokens WHERE token_hash = $1`, tokenHash).Scan(&revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil // Token not tracked = not revoked
	}
	if err != nil {
		return false, err
	}
	return revoked, nil
}

// PurgeExpiredTokens deletes tokens that expired before now.
func (s *Store) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM device_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	return res.RowsAffected()
}
