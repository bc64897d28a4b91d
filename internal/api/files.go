package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/auth"
	"github.com/cyberchip-wang/s3uploader-ui/internal/explorer"
	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
	"github.com/cyberchip-wang/s3uploader-ui/internal/protocol"
	"github.com/cyberchip-wang/s3uploader-ui/internal/web"
)

func (s *Server) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	if err := s.signOut(r.Context(), auth.ExtractToken(r)); err != nil {
		s.sendError(w, http.StatusUnauthorized, err.Error())
		return
	}
	s.clearTokenCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	views := make([]protocol.ViewInfo, 0, 3)
	for _, v := range web.Views() {
		views = append(views, protocol.ViewInfo{Label: v.Label, Path: v.Path})
	}
	writeJSON(w, http.StatusOK, protocol.SessionResponse{
		Username:     sess.Username,
		Provisioning: sess.ProvisionStatus(),
		Banner:       sess.Banner(),
		Views:        views,
		App: protocol.AppInfo{
			Title:       web.AppTitle,
			Description: web.AppDescription,
		},
	})
}

func listResponse(panel *explorer.Panel, folder paths.FolderType) protocol.ListResponse {
	return protocol.NewListResponse(string(folder), folder.Label(), panel.Prefix(), panel.Snapshot())
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	panel, folder, err := folderPanel(r, s.currentSession(r))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.loadPanel(r.Context(), panel); err != nil && !errors.Is(err, explorer.ErrStale) {
		s.sendError(w, http.StatusBadGateway, explorer.MsgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(panel, folder))
}

func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	panel, folder, err := folderPanel(r, s.currentSession(r))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listResponse(panel, folder))
}

func (s *Server) handleAPIDownload(w http.ResponseWriter, r *http.Request) {
	panel, _, err := folderPanel(r, s.currentSession(r))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req protocol.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	url, err := panel.DownloadKey(r.Context(), req.Key)
	if errors.Is(err, explorer.ErrNoSelection) || errors.Is(err, paths.ErrInvalidArgument) {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logging.WithContext(r.Context()).Error("download failed", zap.Error(err))
		s.sendError(w, http.StatusBadGateway, explorer.MsgDownloadFailed)
		return
	}
	writeJSON(w, http.StatusOK, protocol.DownloadResponse{URL: url})
}

func (s *Server) handleAPIDelete(w http.ResponseWriter, r *http.Request) {
	panel, folder, err := folderPanel(r, s.currentSession(r))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req protocol.DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = panel.DeleteKeys(r.Context(), req.Keys...)
	var delErr *explorer.DeleteError
	switch {
	case err == nil, errors.Is(err, explorer.ErrStale):
		writeJSON(w, http.StatusOK, listResponse(panel, folder))
	case errors.Is(err, explorer.ErrNoSelection), errors.Is(err, paths.ErrInvalidArgument):
		s.sendError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &delErr):
		logging.WithContext(r.Context()).Error("delete failed",
			zap.Strings("failed", delErr.Failed),
			zap.Strings("removed", delErr.Removed),
			zap.Error(delErr.Err))
		writeJSON(w, http.StatusBadGateway, protocol.ErrorResponse{
			Error:   explorer.MsgDeleteFailed,
			Code:    http.StatusBadGateway,
			Details: "failed: " + strings.Join(delErr.Failed, ", "),
		})
	default:
		// Removals succeeded but the refresh failed.
		logging.WithContext(r.Context()).Error("refresh after delete failed", zap.Error(err))
		s.sendError(w, http.StatusBadGateway, explorer.MsgLoadFailed)
	}
}
