package auth

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUserNotFound is returned when a username is unknown.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when creating a duplicate username.
	ErrUserExists = errors.New("user already exists")
)

// User is a local account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// UserStore persists users and issued device tokens.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int, error)

	RecordToken(ctx context.Context, userID int64, deviceName, tokenHash string, expiresAt time.Time) error
	RevokeToken(ctx context.Context, tokenHash string) error
	IsTokenRevoked(ctx context.Context, tokenHash string) (bool, error)
}

type memoryToken struct {
	userID  int64
	device  string
	expires time.Time
	revoked bool
}

// MemoryStore is a UserStore kept in process memory. It is used when no
// database is configured.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*User
	tokens map[string]*memoryToken
}

var _ UserStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*User),
		tokens: make(map[string]*memoryToken),
	}
}

func (s *MemoryStore) GetUser(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, username, passwordHash string, isAdmin bool) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return nil, ErrUserExists
	}
	s.nextID++
	u := &User{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    time.Now(),
	}
	s.users[username] = u
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CountUsers(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *MemoryStore) RecordToken(_ context.Context, userID int64, deviceName, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenHash] = &memoryToken{userID: userID, device: deviceName, expires: expiresAt}
	return nil
}

func (s *MemoryStore) RevokeToken(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok {
		t.revoked = true
		return nil
	}
	// Untracked tokens are remembered as revoked so they cannot be reused.
	s.tokens[tokenHash] = &memoryToken{revoked: true}
	return nil
}

func (s *MemoryStore) IsTokenRevoked(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	return ok && t.revoked, nil
}
