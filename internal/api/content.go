package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
)

// handleContent serves a signed download link issued by a backend that
// cannot presign URLs of its own.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	cs, ok := storage.AsContentServer(s.backend)
	if !ok {
		http.NotFound(w, r)
		return
	}

	rc, info, err := cs.OpenSigned(r.Context(), r.PathValue("token"))
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logging.WithContext(r.Context()).Warn("content link rejected", zap.Error(err))
		http.Error(w, "invalid or expired link", http.StatusForbidden)
		return
	}
	defer rc.Close()

	name := path.Base(info.Key)
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if info.Size != nil {
		w.Header().Set("Content-Length", strconv.FormatInt(*info.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		logging.WithContext(r.Context()).Debug("content copy interrupted", zap.Error(err))
	}
}
