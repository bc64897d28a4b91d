// Package protocol defines the API request/response types.
package protocol

import (
	"time"

	"github.com/cyberchip-wang/s3uploader-ui/internal/explorer"
)

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// LoginRequest is the body for POST /api/v1/auth/token
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name"`
}

// UserInfo describes the signed-in user.
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// LoginResponse is returned by POST /api/v1/auth/token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

// SessionResponse is returned by GET /api/v1/session
type SessionResponse struct {
	Username     string     `json:"username"`
	Provisioning string     `json:"provisioning"`
	Banner       string     `json:"banner,omitempty"`
	Views        []ViewInfo `json:"views"`
	App          AppInfo    `json:"app"`
}

// AppInfo carries the application header.
type AppInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ViewInfo names one navigable view.
type ViewInfo struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// FileInfo is one listed file with its display strings.
type FileInfo struct {
	Key          string     `json:"key"`
	Name         string     `json:"name"`
	Size         *int64     `json:"size,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	DisplaySize  string     `json:"display_size"`
	DisplayDate  string     `json:"display_modified"`
}

// ListResponse is returned by GET /api/v1/files/{folder}
type ListResponse struct {
	Folder   string     `json:"folder"`
	Label    string     `json:"label"`
	Prefix   string     `json:"prefix"`
	Loading  bool       `json:"loading"`
	Error    string     `json:"error,omitempty"`
	Files    []FileInfo `json:"files"`
	Selected []string   `json:"selected"`
}

// DownloadRequest is the body for POST /api/v1/files/{folder}/download
type DownloadRequest struct {
	Key string `json:"key"`
}

// DownloadResponse carries the time-scoped download URL.
type DownloadResponse struct {
	URL string `json:"url"`
}

// DeleteRequest is the body for DELETE /api/v1/files/{folder}
type DeleteRequest struct {
	Keys []string `json:"keys"`
}

// UploadResponse is returned by POST /api/v1/files/input
type UploadResponse struct {
	Keys []string `json:"keys"`
	Size int64    `json:"size"`
}

// NewListResponse converts panel state into a ListResponse.
func NewListResponse(folder, label, prefix string, st explorer.State) ListResponse {
	files := make([]FileInfo, 0, len(st.Files))
	for _, f := range st.Files {
		files = append(files, FileInfo{
			Key:          f.Key,
			Name:         f.Name,
			Size:         f.Size,
			LastModified: f.LastModified,
			DisplaySize:  f.DisplaySize(),
			DisplayDate:  f.DisplayModified(),
		})
	}
	return ListResponse{
		Folder:   folder,
		Label:    label,
		Prefix:   prefix,
		Loading:  st.Loading,
		Error:    st.Error,
		Files:    files,
		Selected: st.Selected,
	}
}
