// s3uploader server
//
// Features:
// - Upload page and per-user input/output file explorers
// - Folder provisioning on first sign-in
// - Local JWT and optional OIDC sign-in
// - Prometheus metrics & structured logging (zap)
// - Multi-backend storage (S3, MinIO, local)
package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/api"
	"github.com/cyberchip-wang/s3uploader-ui/internal/auth"
	"github.com/cyberchip-wang/s3uploader-ui/internal/config"
	"github.com/cyberchip-wang/s3uploader-ui/internal/explorer"
	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metadata/postgres"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metrics"
	"github.com/cyberchip-wang/s3uploader-ui/internal/session"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage/factory"
	"github.com/cyberchip-wang/s3uploader-ui/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(cfg.Logging()); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("s3uploader server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("storage", cfg.StorageBackend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Users live in PostgreSQL when configured, in memory otherwise.
	var (
		store   auth.UserStore = auth.NewMemoryStore()
		pgStore *postgres.Store
	)
	if cfg.DatabaseURL != "" {
		logging.Info("connecting to PostgreSQL...")
		pgStore, err = postgres.New(cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("database connection failed", zap.Error(err))
		}
		defer pgStore.Close()
		if err := pgStore.Migrate(ctx); err != nil {
			logging.Fatal("migration failed", zap.Error(err))
		}
		store = pgStore
	} else {
		logging.Warn("DATABASE_URL not set, users and revoked tokens are kept in memory")
	}

	authHandler := auth.New(store, cfg.JWTSecret, cfg.TokenTTL)
	if err := authHandler.EnsureDefaultAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logging.Error("failed to ensure default admin", zap.Error(err))
	}

	// Initialize OIDC provider (optional)
	oidcProvider, err := auth.NewOIDCProvider(ctx, cfg.OIDC(), store)
	if err != nil {
		logging.Fatal("OIDC provider init failed", zap.Error(err))
	}
	if oidcProvider != nil {
		authHandler.SetOIDCProvider(oidcProvider)
		logging.Info("OIDC sign-in enabled", zap.String("issuer", cfg.OIDCIssuerURL))
	}

	backend, err := factory.New(ctx, cfg.Storage())
	if err != nil {
		logging.Fatal("storage init failed", zap.Error(err))
	}
	defer backend.Close()

	panelOpts := []explorer.Option{
		explorer.WithDeleteConcurrency(cfg.DeleteConcurrency),
		explorer.WithDownloadExpiry(cfg.DownloadURLTTL),
	}
	if cfg.MultiSelect {
		panelOpts = append(panelOpts, explorer.WithMultiSelect())
	}
	sessions := session.NewManager(backend, panelOpts...)

	pages, err := web.NewRenderer()
	if err != nil {
		logging.Fatal("template init failed", zap.Error(err))
	}

	srv := api.NewServer(authHandler, sessions, backend, pages, api.Options{
		MaxUploadSize: cfg.MaxUploadSize,
		SecureCookies: cfg.TLSEnabled(),
	})

	// Start metrics server
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TLSEnabled() {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn("http shutdown incomplete", zap.Error(err))
		}
		metricsServer.Close()
	}()

	// Drop idle sessions
	if cfg.SessionIdleTimeout > 0 {
		go func() {
			ticker := time.NewTicker(sweepInterval(cfg.SessionIdleTimeout))
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := sessions.Sweep(cfg.SessionIdleTimeout); n > 0 {
						logging.Info("idle sessions removed", zap.Int("count", n))
					}
				}
			}
		}()
	}

	// Purge expired device tokens
	if pgStore != nil {
		go func() {
			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					n, err := pgStore.PurgeExpiredTokens(ctx, time.Now())
					if err != nil {
						logging.Error("token purge failed", zap.Error(err))
					} else if n > 0 {
						logging.Info("purged expired tokens", zap.Int64("count", n))
					}
				}
			}
		}()
	}

	if cfg.TLSEnabled() {
		logging.Info("server listening (TLS 1.3)",
			zap.String("addr", cfg.ListenAddr),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
	<-stopped
}

// sweepInterval checks a few times per idle window, never more than once a
// minute.
func sweepInterval(idle time.Duration) time.Duration {
	if d := idle / 4; d > time.Minute {
		return d
	}
	return time.Minute
}
