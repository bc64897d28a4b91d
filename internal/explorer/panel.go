// Package explorer implements the listing and action panel for one user
// folder: load, select, download and delete, with the state a view renders.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metrics"
	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
)

// Messages shown to the user. Details go to the log only.
const (
	MsgLoadFailed     = "Failed to load files. Please try again later."
	MsgDownloadFailed = "Failed to download file. Please try again later."
	MsgDeleteFailed   = "Failed to delete files. Please try again later."
)

// DefaultDeleteConcurrency bounds concurrent removals.
const DefaultDeleteConcurrency = 8

var (
	// ErrNoSelection is returned when an action needs a selection it does
	// not have.
	ErrNoSelection = errors.New("no file selected")
	// ErrStale is returned by Load when a newer load was issued before this
	// one completed. The response was dropped.
	ErrStale = errors.New("stale listing discarded")
)

// DeleteError reports a partially or wholly failed delete.
type DeleteError struct {
	Failed  []string
	Removed []string
	Err     error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete failed for %d of %d files: %v",
		len(e.Failed), len(e.Failed)+len(e.Removed), e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// Entry is one listed file.
type Entry struct {
	Key          string     `json:"key"`
	Name         string     `json:"name"`
	Size         *int64     `json:"size,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// DisplaySize returns the human-readable size, or "-" when unknown or zero.
func (e Entry) DisplaySize() string {
	if e.Size == nil || *e.Size == 0 {
		return "-"
	}
	return paths.FormatBytes(*e.Size)
}

// DisplayModified returns the modification time, or "-" when unknown.
func (e Entry) DisplayModified() string {
	if e.LastModified == nil || e.LastModified.IsZero() {
		return "-"
	}
	return e.LastModified.Format("2006-01-02 15:04:05 MST")
}

// State is what a view renders.
type State struct {
	Loading  bool     `json:"loading"`
	Files    []Entry  `json:"files"`
	Error    string   `json:"error,omitempty"`
	Selected []string `json:"selected"`
}

func (s State) clone() State {
	out := s
	out.Files = make([]Entry, len(s.Files))
	for i, f := range s.Files {
		out.Files[i] = f
		if f.Size != nil {
			size := *f.Size
			out.Files[i].Size = &size
		}
		if f.LastModified != nil {
			mod := *f.LastModified
			out.Files[i].LastModified = &mod
		}
	}
	out.Selected = slices.Clone(s.Selected)
	if out.Selected == nil {
		out.Selected = []string{}
	}
	return out
}

// Option configures a Panel.
type Option func(*Panel)

// WithDeleteConcurrency bounds the number of concurrent removals.
func WithDeleteConcurrency(n int) Option {
	return func(p *Panel) {
		if n > 0 {
			p.deleteConcurrency = n
		}
	}
}

// WithDownloadExpiry sets how long download URLs stay valid.
func WithDownloadExpiry(d time.Duration) Option {
	return func(p *Panel) {
		if d > 0 {
			p.downloadExpiry = d
		}
	}
}

// WithMultiSelect allows more than one selected file.
func WithMultiSelect() Option {
	return func(p *Panel) { p.multiSelect = true }
}

// Panel holds the listing state of one user folder. All methods are safe
// for concurrent use. The client must act for the panel's user.
type Panel struct {
	client storage.Client

	deleteConcurrency int
	downloadExpiry    time.Duration
	multiSelect       bool

	mu     sync.Mutex
	userID string
	folder paths.FolderType
	prefix string
	seq    uint64
	state  State
}

// NewPanel returns a panel for userID's folder in the loading state.
func NewPanel(client storage.Client, userID string, folder paths.FolderType, opts ...Option) (*Panel, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: storage client is required", paths.ErrInvalidArgument)
	}
	prefix, err := paths.GenerateFolderPath(userID, folder)
	if err != nil {
		return nil, err
	}
	p := &Panel{
		client:            client,
		deleteConcurrency: DefaultDeleteConcurrency,
		downloadExpiry:    storage.DefaultDownloadExpiry,
		userID:            userID,
		folder:            folder,
		prefix:            prefix,
		state:             State{Loading: true},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Prefix returns the folder key being listed.
func (p *Panel) Prefix() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefix
}

// FolderType returns the folder being listed.
func (p *Panel) FolderType() paths.FolderType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.folder
}

// Snapshot returns a copy of the current state.
func (p *Panel) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// Retarget switches the panel to another user or folder. Files and
// selection are cleared and the panel returns to loading; in-flight loads
// for the old target become stale.
func (p *Panel) Retarget(userID string, folder paths.FolderType) error {
	prefix, err := paths.GenerateFolderPath(userID, folder)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userID = userID
	p.folder = folder
	p.prefix = prefix
	p.seq++
	p.state = State{Loading: true}
	return nil
}

// Load lists the folder. The marker object for the folder itself is not
// shown. On failure the previous files are kept and the load message is
// set; the returned error carries the detail.
func (p *Panel) Load(ctx context.Context) error {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	prefix := p.prefix
	folder := p.folder
	p.state.Loading = true
	p.state.Error = ""
	p.mu.Unlock()

	res, err := p.client.List(ctx, prefix, storage.Options{Level: storage.LevelProtected})

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.seq {
		logging.WithContext(ctx).Debug("dropping stale listing",
			zap.String("prefix", prefix), zap.Uint64("seq", seq), zap.Uint64("latest", p.seq))
		return ErrStale
	}
	p.state.Loading = false
	metrics.RecordPanelAction("load", string(folder), err == nil)
	if err != nil {
		p.state.Error = MsgLoadFailed
		return fmt.Errorf("list %s: %w", prefix, err)
	}

	files := make([]Entry, 0, len(res.Results))
	for _, obj := range res.Results {
		if obj.Key == prefix {
			continue
		}
		files = append(files, Entry{
			Key:          obj.Key,
			Name:         paths.ExtractFilenameFromPath(obj.Key),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	p.state.Files = files
	p.state.Selected = retain(p.state.Selected, files)
	return nil
}

// retain keeps the selected keys that are still listed.
func retain(selected []string, files []Entry) []string {
	var out []string
	for _, key := range selected {
		if slices.ContainsFunc(files, func(e Entry) bool { return e.Key == key }) {
			out = append(out, key)
		}
	}
	return out
}

// checkKeys validates keys against the listing and returns them sorted
// without duplicates. p.mu must be held.
func (p *Panel) checkKeys(keys []string) ([]string, error) {
	out := slices.Clone(keys)
	slices.Sort(out)
	out = slices.Compact(out)
	if !p.multiSelect && len(out) > 1 {
		return nil, fmt.Errorf("%w: only one file can be selected", paths.ErrInvalidArgument)
	}
	for _, key := range out {
		if !paths.IsUserPath(key, p.userID) {
			return nil, fmt.Errorf("%w: %q is not in the user's folder", paths.ErrInvalidArgument, key)
		}
		if !slices.ContainsFunc(p.state.Files, func(e Entry) bool { return e.Key == key }) {
			return nil, fmt.Errorf("%w: %q is not listed", paths.ErrInvalidArgument, key)
		}
	}
	return out, nil
}

// Select replaces the selection. Every key must be a listed file of the
// panel's user. Without multi-select at most one distinct key is accepted.
func (p *Panel) Select(keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out, err := p.checkKeys(keys)
	if err != nil {
		return err
	}
	p.state.Selected = out
	return nil
}

// DismissError clears the shown message.
func (p *Panel) DismissError() {
	p.mu.Lock()
	p.state.Error = ""
	p.mu.Unlock()
}

// Download returns a time-scoped URL for the single selected file.
func (p *Panel) Download(ctx context.Context) (string, error) {
	p.mu.Lock()
	if len(p.state.Selected) != 1 {
		p.mu.Unlock()
		return "", ErrNoSelection
	}
	key := p.state.Selected[0]
	folder := p.folder
	p.mu.Unlock()
	return p.download(ctx, key, folder)
}

// DownloadKey selects key and returns a time-scoped URL for it. The key is
// validated and captured in one step, so concurrent selections made through
// the same panel do not change which file is returned.
func (p *Panel) DownloadKey(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrNoSelection
	}
	p.mu.Lock()
	keys, err := p.checkKeys([]string{key})
	if err != nil {
		p.mu.Unlock()
		return "", err
	}
	p.state.Selected = keys
	folder := p.folder
	p.mu.Unlock()
	return p.download(ctx, key, folder)
}

func (p *Panel) download(ctx context.Context, key string, folder paths.FolderType) (string, error) {
	url, err := p.client.Get(ctx, key, storage.Options{
		Level:   storage.LevelProtected,
		Expires: p.downloadExpiry,
	})
	metrics.RecordPanelAction("download", string(folder), err == nil)
	if err != nil {
		p.mu.Lock()
		p.state.Error = MsgDownloadFailed
		p.mu.Unlock()
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return url, nil
}

// Delete removes every selected file. See DeleteKeys.
func (p *Panel) Delete(ctx context.Context) error {
	p.mu.Lock()
	keys := slices.Clone(p.state.Selected)
	folder := p.folder
	p.mu.Unlock()
	if len(keys) == 0 {
		return ErrNoSelection
	}
	return p.deleteKeys(ctx, keys, folder)
}

// DeleteKeys selects keys and removes them. The keys are validated and
// captured in one step. On success the selection is cleared and the listing
// reloaded. If any removal fails the listing is left as it was, the
// selection is narrowed to the files that were not removed and a
// *DeleteError is returned. A file that is already gone counts as removed.
func (p *Panel) DeleteKeys(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return ErrNoSelection
	}
	p.mu.Lock()
	checked, err := p.checkKeys(keys)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.state.Selected = slices.Clone(checked)
	folder := p.folder
	p.mu.Unlock()
	return p.deleteKeys(ctx, checked, folder)
}

func (p *Panel) deleteKeys(ctx context.Context, keys []string, folder paths.FolderType) error {
	var (
		mu      sync.Mutex
		failed  []string
		removed []string
		errs    error
	)
	var g errgroup.Group
	g.SetLimit(p.deleteConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			err := p.client.Remove(ctx, key, storage.Options{Level: storage.LevelProtected})
			if errors.Is(err, storage.ErrNotFound) {
				err = nil
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, key)
				errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", key, err))
				return nil
			}
			removed = append(removed, key)
			return nil
		})
	}
	_ = g.Wait()

	metrics.RecordPanelAction("delete", string(folder), errs == nil)
	if errs != nil {
		slices.Sort(failed)
		slices.Sort(removed)
		p.mu.Lock()
		p.state.Error = MsgDeleteFailed
		p.state.Selected = slices.DeleteFunc(p.state.Selected, func(k string) bool {
			_, gone := slices.BinarySearch(removed, k)
			return gone
		})
		p.mu.Unlock()
		return &DeleteError{Failed: failed, Removed: removed, Err: errs}
	}

	p.mu.Lock()
	p.state.Selected = nil
	p.mu.Unlock()
	return p.Load(ctx)
}
