// Package config loads server configuration from the environment, an
// optional .env file and an optional YAML file named by CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/cyberchip-wang/s3uploader-ui/internal/auth"
	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage/factory"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage/local"
	s3backend "github.com/cyberchip-wang/s3uploader-ui/internal/storage/s3"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string
	PublicURL   string

	// Logging
	LogLevel  string
	LogFormat string

	// Database (optional; users are kept in memory without it)
	DatabaseURL string

	// Auth
	JWTSecret     string
	TokenTTL      time.Duration
	AdminUsername string
	AdminPassword string

	// OIDC (optional)
	OIDCIssuerURL  string
	OIDCClientID   string
	OIDCAdminClaim string
	OIDCAdminValue string

	// Storage backend ("local", "s3" or "minio")
	StorageBackend   string
	LocalStoragePath string

	// S3 / MinIO
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// Files
	DownloadURLTTL    time.Duration
	MaxUploadSize     int64
	DeleteConcurrency int
	MultiSelect       bool

	// Sessions
	SessionIdleTimeout time.Duration

	// TLS (optional; if both set, server uses HTTPS)
	TLSCertFile string
	TLSKeyFile  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "admin")
	v.SetDefault("OIDC_ISSUER_URL", "")
	v.SetDefault("OIDC_CLIENT_ID", "")
	v.SetDefault("OIDC_ADMIN_CLAIM", "cognito:groups")
	v.SetDefault("OIDC_ADMIN_VALUE", "admin")
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("LOCAL_STORAGE_PATH", "./data/storage")
	v.SetDefault("S3_ENDPOINT", "http://localhost:9000")
	v.SetDefault("S3_BUCKET", "s3uploader")
	v.SetDefault("S3_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_SECRET_KEY", "minioadmin")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("DOWNLOAD_URL_TTL", "15m")
	v.SetDefault("MAX_UPLOAD_SIZE", 100*1024*1024) // 100MB
	v.SetDefault("DELETE_CONCURRENCY", 8)
	v.SetDefault("MULTI_SELECT", false)
	v.SetDefault("SESSION_IDLE_TIMEOUT", "12h")
	v.SetDefault("TLS_CERT_FILE", "")
	v.SetDefault("TLS_KEY_FILE", "")
}

// Load reads configuration with defaults. Environment variables take
// precedence over the YAML file.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
		logging.Info("loaded config file " + file)
	}

	return &Config{
		ListenAddr:         v.GetString("LISTEN_ADDR"),
		MetricsAddr:        v.GetString("METRICS_ADDR"),
		PublicURL:          v.GetString("PUBLIC_URL"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFormat:          v.GetString("LOG_FORMAT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		TokenTTL:           v.GetDuration("TOKEN_TTL"),
		AdminUsername:      v.GetString("ADMIN_USERNAME"),
		AdminPassword:      v.GetString("ADMIN_PASSWORD"),
		OIDCIssuerURL:      v.GetString("OIDC_ISSUER_URL"),
		OIDCClientID:       v.GetString("OIDC_CLIENT_ID"),
		OIDCAdminClaim:     v.GetString("OIDC_ADMIN_CLAIM"),
		OIDCAdminValue:     v.GetString("OIDC_ADMIN_VALUE"),
		StorageBackend:     v.GetString("STORAGE_BACKEND"),
		LocalStoragePath:   v.GetString("LOCAL_STORAGE_PATH"),
		S3Endpoint:         v.GetString("S3_ENDPOINT"),
		S3Bucket:           v.GetString("S3_BUCKET"),
		S3AccessKey:        v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:        v.GetString("S3_SECRET_KEY"),
		S3Region:           v.GetString("S3_REGION"),
		S3UseSSL:           v.GetBool("S3_USE_SSL"),
		DownloadURLTTL:     v.GetDuration("DOWNLOAD_URL_TTL"),
		MaxUploadSize:      v.GetInt64("MAX_UPLOAD_SIZE"),
		DeleteConcurrency:  v.GetInt("DELETE_CONCURRENCY"),
		MultiSelect:        v.GetBool("MULTI_SELECT"),
		SessionIdleTimeout: v.GetDuration("SESSION_IDLE_TIMEOUT"),
		TLSCertFile:        v.GetString("TLS_CERT_FILE"),
		TLSKeyFile:         v.GetString("TLS_KEY_FILE"),
	}, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs error
	if c.JWTSecret == "" {
		errs = multierr.Append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StorageBackend {
	case "local", "s3", "minio":
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	if c.StorageBackend != "local" && c.S3Bucket == "" {
		errs = multierr.Append(errs, errors.New("S3_BUCKET is required"))
	}
	if c.DeleteConcurrency < 1 {
		errs = multierr.Append(errs, errors.New("DELETE_CONCURRENCY must be at least 1"))
	}
	if c.MaxUploadSize < 1 {
		errs = multierr.Append(errs, errors.New("MAX_UPLOAD_SIZE must be positive"))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = multierr.Append(errs, errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together"))
	}
	return errs
}

// TLSEnabled reports whether both TLS files are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat}
}

// Storage returns the storage backend settings.
func (c *Config) Storage() factory.Config {
	return factory.Config{
		Type: c.StorageBackend,
		S3: s3backend.Config{
			Endpoint:  c.S3Endpoint,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Region:    c.S3Region,
			UseSSL:    c.S3UseSSL,
		},
		Local: local.Config{
			RootPath:      c.LocalStoragePath,
			CreateDirs:    true,
			PublicURL:     c.PublicURL,
			SigningSecret: c.JWTSecret,
		},
	}
}

// OIDC returns the OIDC provider settings.
func (c *Config) OIDC() auth.OIDCConfig {
	return auth.OIDCConfig{
		IssuerURL:  c.OIDCIssuerURL,
		ClientID:   c.OIDCClientID,
		AdminClaim: c.OIDCAdminClaim,
		AdminValue: c.OIDCAdminValue,
	}
}
