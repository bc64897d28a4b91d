package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":8080" || cfg.MetricsAddr != ":9090" {
		t.Errorf("addrs = %q, %q", cfg.ListenAddr, cfg.MetricsAddr)
	}
	if cfg.StorageBackend != "local" || cfg.LocalStoragePath != "./data/storage" {
		t.Errorf("storage = %q, %q", cfg.StorageBackend, cfg.LocalStoragePath)
	}
	if cfg.TokenTTL != 24*time.Hour || cfg.DownloadURLTTL != 15*time.Minute {
		t.Errorf("ttls = %v, %v", cfg.TokenTTL, cfg.DownloadURLTTL)
	}
	if cfg.MaxUploadSize != 100*1024*1024 || cfg.DeleteConcurrency != 8 {
		t.Errorf("limits = %d, %d", cfg.MaxUploadSize, cfg.DeleteConcurrency)
	}
	if cfg.SessionIdleTimeout != 12*time.Hour {
		t.Errorf("idle = %v", cfg.SessionIdleTimeout)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("DELETE_CONCURRENCY", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":9999" || cfg.StorageBackend != "minio" || !cfg.S3UseSSL {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.TokenTTL != 2*time.Hour || cfg.DeleteConcurrency != 3 {
		t.Errorf("ttl = %v concurrency = %d", cfg.TokenTTL, cfg.DeleteConcurrency)
	}
	if sc := cfg.Storage(); sc.Type != "minio" || !sc.S3.UseSSL {
		t.Errorf("storage config = %+v", sc)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":7070\"\ns3_bucket: uploads\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("S3_BUCKET", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.S3Bucket != "from-env" {
		t.Errorf("env should win over file: S3Bucket = %q", cfg.S3Bucket)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("missing config file accepted")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			JWTSecret:         "s",
			StorageBackend:    "local",
			DeleteConcurrency: 1,
			MaxUploadSize:     1,
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"bad backend", func(c *Config) { c.StorageBackend = "ftp" }, "STORAGE_BACKEND"},
		{"s3 without bucket", func(c *Config) { c.StorageBackend = "s3" }, "S3_BUCKET"},
		{"zero concurrency", func(c *Config) { c.DeleteConcurrency = 0 }, "DELETE_CONCURRENCY"},
		{"half tls", func(c *Config) { c.TLSCertFile = "cert.pem" }, "TLS_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
