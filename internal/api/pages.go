package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/auth"
	"github.com/cyberchip-wang/s3uploader-ui/internal/explorer"
	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
	"github.com/cyberchip-wang/s3uploader-ui/internal/web"
)

func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, name string, data any) {
	if err := s.pages.Render(w, code, name, data); err != nil {
		logging.WithContext(r.Context()).Error("render page failed", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) setTokenCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, defaultPath, http.StatusFound)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if _, err := s.auth.Authenticate(r.Context(), auth.ExtractToken(r)); err == nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, web.PageLogin, web.LoginPage{
		Page: web.NewPage("Sign in", "", "", ""),
		Next: next,
	})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	next := safeNext(r.PostFormValue("next"))
	token, claims, err := s.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"), "browser")
	if err != nil {
		code := http.StatusUnauthorized
		msg := "Invalid username or password."
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			logging.WithContext(r.Context()).Error("login failed", zap.Error(err))
			code = http.StatusInternalServerError
			msg = "Sign-in is unavailable. Please try again later."
		}
		s.render(w, r, code, web.PageLogin, web.LoginPage{
			Page:  web.NewPage("Sign in", "", "", ""),
			Error: msg,
			Next:  next,
		})
		return
	}

	s.setTokenCookie(w, token, claims.ExpiresAt.Time)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Already logged by signOut; the cookie is cleared either way.
	_ = s.signOut(r.Context(), auth.ExtractToken(r))
	s.clearTokenCookie(w)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// signOut revokes token and drops its session.
func (s *Server) signOut(ctx context.Context, token string) error {
	claims, err := s.auth.Revoke(ctx, token)
	if err != nil {
		logging.WithContext(ctx).Warn("sign-out failed", zap.Error(err))
		return err
	}
	s.sessions.End(claims.SessionID())
	return nil
}

func (s *Server) handleBannerDismiss(w http.ResponseWriter, r *http.Request) {
	s.currentSession(r).DismissBanner()
	http.Redirect(w, r, safeNext(r.PostFormValue("next")), http.StatusSeeOther)
}

func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	s.render(w, r, http.StatusOK, web.PageUpload, s.uploadPage(sess.Username, sess.Banner()))
}

func (s *Server) uploadPage(username, banner string) web.UploadPage {
	return web.UploadPage{
		Page:    web.NewPage("Upload", username, banner, "/upload"),
		MaxSize: paths.FormatBytes(s.maxUploadSize),
	}
}

func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	keys, _, err := s.receiveUpload(w, r, sess.Client(), sess.Username)
	data := s.uploadPage(sess.Username, sess.Banner())
	if err != nil {
		code, msg := uploadFailure(err)
		data.Error = msg
		s.render(w, r, code, web.PageUpload, data)
		return
	}
	data.Message = fmt.Sprintf("Uploaded %d file(s) to your input folder.", len(keys))
	s.render(w, r, http.StatusOK, web.PageUpload, data)
}

func (s *Server) handleFilesPage(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	panel, folder, err := folderPanel(r, sess)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// Actions redirect here with reload=false so their outcome stays visible.
	if r.URL.Query().Get("reload") != "false" || panel.Snapshot().Loading {
		s.loadPanel(r.Context(), panel)
	}
	s.render(w, r, http.StatusOK, web.PageFiles, web.FilesPage{
		Page:   web.NewPage(folder.Label(), sess.Username, sess.Banner(), "/files/"+string(folder)),
		Folder: folder,
		State:  panel.Snapshot(),
	})
}

// loadPanel runs Load and logs the outcome. The panel state carries the
// user-facing message.
func (s *Server) loadPanel(ctx context.Context, panel *explorer.Panel) error {
	err := panel.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, explorer.ErrStale):
		logging.WithContext(ctx).Debug("listing superseded", zap.String("prefix", panel.Prefix()))
	default:
		logging.WithContext(ctx).Error("loading files failed", zap.String("prefix", panel.Prefix()), zap.Error(err))
	}
	return err
}

// formKeys returns the submitted "key" values.
func formKeys(r *http.Request) ([]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: invalid form", paths.ErrInvalidArgument)
	}
	return r.PostForm["key"], nil
}

func backToFolder(w http.ResponseWriter, r *http.Request, folder paths.FolderType) {
	http.Redirect(w, r, "/files/"+string(folder)+"?reload=false", http.StatusSeeOther)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	panel, folder, err := folderPanel(r, s.currentSession(r))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	keys, err := formKeys(r)
	if err == nil && len(keys) > 0 {
		err = panel.Select(keys...)
	}
	if err != nil {
		logging.WithContext(r.Context()).Warn("selection rejected", zap.Error(err))
	}
	backToFolder(w, r, folder)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	panel, folder, err := folderPanel(r, s.currentSession(r))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	keys, err := formKeys(r)
	if err != nil || len(keys) != 1 {
		logging.WithContext(r.Context()).Warn("download needs exactly one file", zap.Strings("keys", keys), zap.Error(err))
		backToFolder(w, r, folder)
		return
	}
	url, err := panel.DownloadKey(r.Context(), keys[0])
	if err != nil {
		logging.WithContext(r.Context()).Error("download failed", zap.Error(err))
		backToFolder(w, r, folder)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	panel, folder, err := folderPanel(r, s.currentSession(r))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	keys, err := formKeys(r)
	if err != nil {
		logging.WithContext(r.Context()).Warn("selection rejected", zap.Error(err))
		backToFolder(w, r, folder)
		return
	}
	if err := panel.DeleteKeys(r.Context(), keys...); err != nil && !errors.Is(err, explorer.ErrStale) {
		logging.WithContext(r.Context()).Error("delete failed", zap.Error(err))
	}
	backToFolder(w, r, folder)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	panel, folder, err := folderPanel(r, s.currentSession(r))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	panel.DismissError()
	backToFolder(w, r, folder)
}
