package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metrics"
)

// OIDCConfig holds OIDC provider configuration.
type OIDCConfig struct {
	IssuerURL  string // e.g. https://cognito-idp.us-east-1.amazonaws.com/us-east-1_example
	ClientID   string
	AdminClaim string // claim key for admin status (default: "cognito:groups")
	AdminValue string // claim value that indicates admin (default: "admin")
}

// OIDCProvider validates OIDC ID tokens and auto-creates local users.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	config   OIDCConfig
	store    UserStore
}

// NewOIDCProvider creates an OIDC provider from config.
// Returns nil if IssuerURL is empty (OIDC disabled).
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig, store UserStore) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" {
		return nil, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider init: %w", err)
	}

	if cfg.AdminClaim == "" {
		cfg.AdminClaim = "cognito:groups"
	}
	if cfg.AdminValue == "" {
		cfg.AdminValue = "admin"
	}

	logging.Info("OIDC provider initialized",
		zap.String("issuer", cfg.IssuerURL),
		zap.String("client_id", cfg.ClientID))

	return &OIDCProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		config:   cfg,
		store:    store,
	}, nil
}

// ValidateToken verifies tokenStr as an ID token. The local user is created
// on first sight. The returned claims carry the token hash as their id.
func (o *OIDCProvider) ValidateToken(ctx context.Context, tokenStr string) (*Claims, error) {
	idToken, err := o.verifier.Verify(ctx, tokenStr)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("parse oidc claims: %w", err)
	}
	username := usernameFromClaims(raw)
	if username == "" {
		return nil, errors.New("oidc token has no usable username claim")
	}
	isAdmin := claimMatches(raw[o.config.AdminClaim], o.config.AdminValue)

	user, err := o.ensureUser(ctx, username, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	metrics.RecordAuthAttempt(true)
	return &Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        HashToken(tokenStr),
			Subject:   idToken.Subject,
			Issuer:    idToken.Issuer,
			ExpiresAt: jwt.NewNumericDate(idToken.Expiry),
		},
	}, nil
}

// usernameFromClaims prefers cognito:username, then preferred_username,
// email and sub.
func usernameFromClaims(raw map[string]interface{}) string {
	for _, key := range []string{"cognito:username", "preferred_username", "email", "sub"} {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// claimMatches reports whether val equals want or, for list claims such as
// group memberships, contains it.
func claimMatches(val interface{}, want string) bool {
	switch v := val.(type) {
	case nil:
		return false
	case []interface{}:
		for _, item := range v {
			if fmt.Sprintf("%v", item) == want {
				return true
			}
		}
		return false
	default:
		return fmt.Sprintf("%v", v) == want
	}
}

func (o *OIDCProvider) ensureUser(ctx context.Context, username string, isAdmin bool) (*User, error) {
	user, err := o.store.GetUser(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	// OIDC users never log in with a local password.
	user, err = o.store.CreateUser(ctx, username, "oidc-managed", isAdmin)
	if errors.Is(err, ErrUserExists) {
		return o.store.GetUser(ctx, username)
	}
	if err != nil {
		return nil, fmt.Errorf("create oidc user: %w", err)
	}

	logging.Info("auto-created OIDC user", zap.String("username", username), zap.Bool("is_admin", isAdmin))
	return user, nil
}
