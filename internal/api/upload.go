package api

import (
	"errors"
	"fmt"
	"net/http"
	"path"

	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metrics"
	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
	"github.com/cyberchip-wang/s3uploader-ui/internal/protocol"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
)

const multipartMemory = 32 << 20

var (
	errNoFiles      = errors.New("no files in request")
	errTooLarge     = errors.New("upload too large")
	errUploadFailed = errors.New("upload failed")
)

// receiveUpload stores every "file" part of a multipart request in the
// user's input folder and returns the logical keys written.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request, client storage.Client, username string) ([]string, int64, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordUpload(0, false)
			return nil, 0, errTooLarge
		}
		return nil, 0, fmt.Errorf("%w: invalid multipart form", paths.ErrInvalidArgument)
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		return nil, 0, errNoFiles
	}

	log := logging.WithContext(r.Context())
	var (
		keys  []string
		total int64
	)
	for _, fh := range headers {
		name := path.Base(fh.Filename)
		if name == "." || name == "/" || name == "" {
			return keys, total, fmt.Errorf("%w: invalid file name %q", paths.ErrInvalidArgument, fh.Filename)
		}
		key, err := paths.GenerateUserPath(username, paths.FolderInput, name)
		if err != nil {
			return keys, total, err
		}

		f, err := fh.Open()
		if err != nil {
			return keys, total, fmt.Errorf("open upload %s: %w", name, err)
		}
		err = client.Put(r.Context(), key, f, storage.Options{
			Level:       storage.LevelProtected,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
		})
		f.Close()
		metrics.RecordUpload(fh.Size, err == nil)
		if err != nil {
			log.Error("upload failed", zap.String("key", key), zap.Error(err))
			return keys, total, fmt.Errorf("%w: %s", errUploadFailed, name)
		}

		log.Info("file uploaded", zap.String("key", key), zap.Int64("size", fh.Size))
		keys = append(keys, key)
		total += fh.Size
	}
	return keys, total, nil
}

// uploadFailure maps an upload error to a status and a user message.
func uploadFailure(err error) (int, string) {
	switch {
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, "The upload is larger than the allowed size."
	case errors.Is(err, errNoFiles):
		return http.StatusBadRequest, "Choose at least one file to upload."
	case errors.Is(err, paths.ErrInvalidArgument):
		return http.StatusBadRequest, "The upload could not be read."
	default:
		return http.StatusBadGateway, "Failed to upload files. Please try again later."
	}
}

func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	folder, err := paths.ParseFolderType(r.PathValue("folder"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if folder != paths.FolderInput {
		s.sendError(w, http.StatusForbidden, "uploads are only accepted into the input folder")
		return
	}

	sess := s.currentSession(r)
	keys, total, err := s.receiveUpload(w, r, sess.Client(), sess.Username)
	if err != nil {
		code, msg := uploadFailure(err)
		writeJSON(w, code, protocol.ErrorResponse{Error: msg, Code: code, Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, protocol.UploadResponse{Keys: keys, Size: total})
}
