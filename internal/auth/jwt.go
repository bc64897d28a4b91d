// Package auth provides JWT-based authentication for the API and the pages.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metrics"
	"github.com/cyberchip-wang/s3uploader-ui/internal/protocol"
)

type contextKey string

const (
	userContextKey contextKey = "user"
)

// CookieName is the browser session cookie holding the token.
const CookieName = "s3uploader_token"

// DefaultTokenTTL is used when New is given a zero TTL.
const DefaultTokenTTL = 24 * time.Hour

const issuer = "s3uploader"

var (
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenRevoked is returned for a token that was signed out.
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Claims holds JWT token claims.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// SessionID returns the id that keys the user's session: the token id.
func (c *Claims) SessionID() string { return c.ID }

// Auth handles JWT authentication.
type Auth struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
	oidc   *OIDCProvider
	now    func() time.Time
}

// New creates a new Auth handler.
func New(store UserStore, jwtSecret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Auth{
		store:  store,
		secret: []byte(jwtSecret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Store returns the user store.
func (a *Auth) Store() UserStore { return a.store }

// TTL returns the lifetime of issued tokens.
func (a *Auth) TTL() time.Duration { return a.ttl }

// SetOIDCProvider sets the OIDC provider tried after local JWT validation.
func (a *Auth) SetOIDCProvider(p *OIDCProvider) {
	a.oidc = p
}

// Login checks the password and issues a token recorded for deviceName.
func (a *Auth) Login(ctx context.Context, username, password, deviceName string) (string, *Claims, error) {
	user, err := a.store.GetUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: unknown user", zap.String("username", username))
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		metrics.RecordAuthAttempt(false)
		return "", nil, fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: invalid password", zap.String("username", username))
		return "", nil, ErrInvalidCredentials
	}

	now := a.now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	if deviceName == "" {
		deviceName = "unknown"
	}
	if err := a.store.RecordToken(ctx, user.ID, deviceName, HashToken(tokenStr), claims.ExpiresAt.Time); err != nil {
		logging.Error("failed to record device token", zap.Error(err))
	}

	metrics.RecordAuthAttempt(true)
	logging.Info("login successful",
		zap.String("username", user.Username),
		zap.String("device", deviceName))
	return tokenStr, claims, nil
}

// Authenticate validates tokenStr as a local JWT, then as an OIDC ID token
// when a provider is configured.
func (a *Auth) Authenticate(ctx context.Context, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, errors.New("missing authentication token")
	}

	// Without a revocation answer a signed-out token cannot be told apart,
	// so the request is refused.
	revoked, err := a.store.IsTokenRevoked(ctx, HashToken(tokenStr))
	if err != nil {
		logging.Error("token revocation check failed", zap.Error(err))
		return nil, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	claims, err := a.validateToken(tokenStr)
	if err == nil {
		return claims, nil
	}
	if a.oidc != nil {
		if oc, oerr := a.oidc.ValidateToken(ctx, tokenStr); oerr == nil {
			return oc, nil
		}
	}
	return nil, err
}

// Revoke marks tokenStr as signed out and returns its claims.
func (a *Auth) Revoke(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := a.Authenticate(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	if err := a.store.RevokeToken(ctx, HashToken(tokenStr)); err != nil {
		return nil, fmt.Errorf("revoke token: %w", err)
	}
	logging.Info("token revoked", zap.String("username", claims.Username))
	return claims, nil
}

// Middleware returns HTTP middleware that answers 401 JSON for requests
// without a valid token.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Authenticate(r.Context(), ExtractToken(r))
		if err != nil {
			metrics.RecordAuthAttempt(false)
			sendAuthError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// PageMiddleware redirects requests without a valid token to loginPath.
func (a *Auth) PageMiddleware(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.Authenticate(r.Context(), ExtractToken(r))
			if err != nil {
				target := loginPath
				if r.Method == http.MethodGet {
					target += "?next=" + url.QueryEscape(r.URL.RequestURI())
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// GetClaims extracts claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(userContextKey).(*Claims)
	return claims
}

// HandleLogin handles POST /api/v1/auth/token
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		metrics.RecordAuthAttempt(false)
		sendAuthError(w, http.StatusBadRequest, "username and password required")
		return
	}

	tokenStr, claims, err := a.Login(r.Context(), req.Username, req.Password, req.DeviceName)
	if errors.Is(err, ErrInvalidCredentials) {
		sendAuthError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		logging.Error("login failed", zap.Error(err))
		sendAuthError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.LoginResponse{
		Token:     tokenStr,
		ExpiresAt: claims.ExpiresAt.Time,
		User: protocol.UserInfo{
			ID:       claims.UserID,
			Username: claims.Username,
			IsAdmin:  claims.IsAdmin,
		},
	})
}

// CreateUser hashes password and stores a new user.
func (a *Auth) CreateUser(ctx context.Context, username, password string, isAdmin bool) (*User, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := a.store.CreateUser(ctx, username, string(hashed), isAdmin)
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", username, err)
	}
	return u, nil
}

// EnsureDefaultAdmin creates the bootstrap admin if no users exist.
func (a *Auth) EnsureDefaultAdmin(ctx context.Context, username, password string) error {
	count, err := a.store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	logging.Info("no users found, creating default admin", zap.String("username", username))
	if password == "admin" {
		logging.Warn("default admin uses the default password; change it immediately")
	}
	_, err = a.CreateUser(ctx, username, password, true)
	return err
}

func (a *Auth) validateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ExtractToken reads the token from the Authorization header, the session
// cookie or the token query parameter, in that order.
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// HashToken returns the hex SHA-256 of token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func sendAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
