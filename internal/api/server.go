// Package api provides the HTTP server: the signed-in pages, the JSON API
// and the signed content endpoint.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/auth"
	"github.com/cyberchip-wang/s3uploader-ui/internal/explorer"
	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metrics"
	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
	"github.com/cyberchip-wang/s3uploader-ui/internal/protocol"
	"github.com/cyberchip-wang/s3uploader-ui/internal/session"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
	"github.com/cyberchip-wang/s3uploader-ui/internal/web"
)

const (
	loginPath   = "/login"
	defaultPath = "/upload"
)

// DefaultMaxUploadSize is used when Options.MaxUploadSize is zero.
const DefaultMaxUploadSize = 100 * 1024 * 1024

// Options tune the server.
type Options struct {
	MaxUploadSize int64
	// SecureCookies marks the session cookie Secure (HTTPS deployments).
	SecureCookies bool
}

// Server is the HTTP server.
type Server struct {
	auth     *auth.Auth
	sessions *session.Manager
	backend  storage.Backend
	pages    *web.Renderer

	maxUploadSize int64
	secureCookies bool
}

// NewServer creates a new server.
func NewServer(authHandler *auth.Auth, sessions *session.Manager, backend storage.Backend, pages *web.Renderer, opts Options) *Server {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	return &Server{
		auth:          authHandler,
		sessions:      sessions,
		backend:       backend,
		pages:         pages,
		maxUploadSize: opts.MaxUploadSize,
		secureCookies: opts.SecureCookies,
	}
}

// Handler returns the HTTP handler with logging, metrics and auth
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	page := func(h http.HandlerFunc) http.Handler {
		return s.auth.PageMiddleware(loginPath)(h)
	}
	api := func(h http.HandlerFunc) http.Handler {
		return s.auth.Middleware(h)
	}

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLoginForm)
	mux.HandleFunc("POST /api/v1/auth/token", s.auth.HandleLogin)
	mux.HandleFunc("GET /content/{token}", s.handleContent)
	mux.Handle("GET /static/", web.Static())

	// Pages
	mux.Handle("GET /{$}", page(s.handleRoot))
	mux.Handle("POST /logout", page(s.handleLogout))
	mux.Handle("GET /upload", page(s.handleUploadPage))
	mux.Handle("POST /upload", page(s.handleUploadForm))
	mux.Handle("POST /banner/dismiss", page(s.handleBannerDismiss))
	mux.Handle("GET /files/{folder}", page(s.handleFilesPage))
	mux.Handle("POST /files/{folder}/select", page(s.handleSelect))
	mux.Handle("POST /files/{folder}/download", page(s.handleDownload))
	mux.Handle("POST /files/{folder}/delete", page(s.handleDelete))
	mux.Handle("POST /files/{folder}/dismiss", page(s.handleDismiss))

	// API
	mux.Handle("POST /api/v1/auth/logout", api(s.handleAPILogout))
	mux.Handle("GET /api/v1/session", api(s.handleSession))
	mux.Handle("GET /api/v1/files/{folder}", api(s.handleAPIList))
	mux.Handle("GET /api/v1/files/{folder}/state", api(s.handleAPIState))
	mux.Handle("POST /api/v1/files/{folder}/download", api(s.handleAPIDownload))
	mux.Handle("DELETE /api/v1/files/{folder}", api(s.handleAPIDelete))
	mux.Handle("POST /api/v1/files/{folder}", api(s.handleAPIUpload))

	return logging.Middleware(metrics.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"storage": s.backend.Type(),
	})
}

// currentSession returns the caller's session, provisioning the user's
// folders on first use.
func (s *Server) currentSession(r *http.Request) *session.Session {
	claims := auth.GetClaims(r.Context())
	sess := s.sessions.Begin(r.Context(), claims.SessionID(), claims.Username)
	sess.EnsureProvisioned(r.Context())
	return sess
}

// folderPanel resolves the {folder} path value to the session's panel.
func folderPanel(r *http.Request, sess *session.Session) (*explorer.Panel, paths.FolderType, error) {
	folder, err := paths.ParseFolderType(r.PathValue("folder"))
	if err != nil {
		return nil, "", err
	}
	p, err := sess.Panel(folder)
	if err != nil {
		return nil, "", err
	}
	return p, folder, nil
}

// safeNext returns next when it is a local path, else the default view.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return defaultPath
	}
	return next
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("write response failed", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
