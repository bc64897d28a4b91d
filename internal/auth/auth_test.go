package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyberchip-wang/s3uploader-ui/internal/protocol"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	a := New(NewMemoryStore(), "test-secret", time.Hour)
	if err := a.EnsureDefaultAdmin(context.Background(), "admin", "admin"); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestEnsureDefaultAdminOnlyOnce(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()
	if err := a.EnsureDefaultAdmin(ctx, "root", "pw"); err != nil {
		t.Fatal(err)
	}
	n, _ := a.Store().CountUsers(ctx)
	if n != 1 {
		t.Errorf("CountUsers = %d, want 1", n)
	}
	u, err := a.Store().GetUser(ctx, "admin")
	if err != nil || !u.IsAdmin {
		t.Errorf("admin = %+v, %v", u, err)
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()

	if _, _, err := a.Login(ctx, "admin", "wrong", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, _, err := a.Login(ctx, "ghost", "admin", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: err = %v", err)
	}

	token, claims, err := a.Login(ctx, "admin", "admin", "laptop")
	if err != nil {
		t.Fatal(err)
	}
	if claims.SessionID() == "" {
		t.Error("token has no id")
	}
	got, err := a.Authenticate(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "admin" || got.SessionID() != claims.SessionID() {
		t.Errorf("claims = %+v", got)
	}

	if _, err := a.Authenticate(ctx, token+"x"); err == nil {
		t.Error("tampered token accepted")
	}
	other := New(NewMemoryStore(), "other-secret", time.Hour)
	if _, err := other.Authenticate(ctx, token); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestExpiredToken(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()
	token, _, err := a.Login(ctx, "admin", "admin", "")
	if err != nil {
		t.Fatal(err)
	}
	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := a.Authenticate(ctx, token); err == nil {
		t.Error("expired token accepted")
	}
}

func TestRevoke(t *testing.T) {
	a := newTestAuth(t)
	ctx := context.Background()
	token, _, err := a.Login(ctx, "admin", "admin", "")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := a.Revoke(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Username != "admin" {
		t.Errorf("claims = %+v", claims)
	}
	if _, err := a.Authenticate(ctx, token); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("err = %v, want ErrTokenRevoked", err)
	}
}

// unreachableStore fails every revocation lookup.
type unreachableStore struct {
	*MemoryStore
}

func (unreachableStore) IsTokenRevoked(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestAuthenticateRefusesWhenRevocationUnknown(t *testing.T) {
	ctx := context.Background()
	a := New(unreachableStore{NewMemoryStore()}, "test-secret", time.Hour)
	if err := a.EnsureDefaultAdmin(ctx, "admin", "admin"); err != nil {
		t.Fatal(err)
	}
	token, _, err := a.Login(ctx, "admin", "admin", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Authenticate(ctx, token); err == nil {
		t.Fatal("token accepted without a revocation answer")
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached")
	})).ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: "def"}) }, "def"},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=ghi" }, "ghi"},
		{"none", func(*http.Request) {}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			if got := ExtractToken(r); got != tt.want {
				t.Errorf("ExtractToken = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	a := newTestAuth(t)
	token, _, err := a.Login(context.Background(), "admin", "admin", "")
	if err != nil {
		t.Fatal(err)
	}
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetClaims(r.Context()).Username))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var resp protocol.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp.Code != http.StatusUnauthorized {
		t.Errorf("body = %+v, %v", resp, err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK || w.Body.String() != "admin" {
		t.Errorf("status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestPageMiddlewareRedirects(t *testing.T) {
	a := newTestAuth(t)
	h := a.PageMiddleware("/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without a token")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/input", nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?next=%2Ffiles%2Finput" {
		t.Errorf("Location = %q", loc)
	}
}

func TestHandleLogin(t *testing.T) {
	a := newTestAuth(t)
	tests := []struct {
		body string
		code int
	}{
		{`{"username":"admin","password":"admin"}`, http.StatusOK},
		{`{"username":"admin","password":"nope"}`, http.StatusUnauthorized},
		{`{"username":"admin"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		a.HandleLogin(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(tt.body)))
		if w.Code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.body, w.Code, tt.code)
		}
		if tt.code == http.StatusOK {
			var resp protocol.LoginResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp.Token == "" || resp.User.Username != "admin" {
				t.Errorf("login response = %+v, %v", resp, err)
			}
		}
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	a := newTestAuth(t)
	if _, err := a.CreateUser(context.Background(), "admin", "x", false); !errors.Is(err, ErrUserExists) {
		t.Errorf("err = %v, want ErrUserExists", err)
	}
}

func TestUsernameFromClaims(t *testing.T) {
	tests := []struct {
		raw  map[string]interface{}
		want string
	}{
		{map[string]interface{}{"cognito:username": "alice", "email": "a@example.com", "sub": "1"}, "alice"},
		{map[string]interface{}{"preferred_username": "bob", "sub": "2"}, "bob"},
		{map[string]interface{}{"email": "c@example.com", "sub": "3"}, "c@example.com"},
		{map[string]interface{}{"sub": "4"}, "4"},
		{map[string]interface{}{}, ""},
	}
	for _, tt := range tests {
		if got := usernameFromClaims(tt.raw); got != tt.want {
			t.Errorf("usernameFromClaims(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestClaimMatches(t *testing.T) {
	if !claimMatches([]interface{}{"users", "admin"}, "admin") {
		t.Error("group list should match")
	}
	if !claimMatches(true, "true") {
		t.Error("bool claim should match")
	}
	if claimMatches(nil, "admin") || claimMatches("users", "admin") {
		t.Error("unexpected match")
	}
}
