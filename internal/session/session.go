// Package session tracks signed-in sessions. Each session provisions the
// user's folders once and owns the panels of its folder views.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/explorer"
	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metrics"
	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
	"github.com/cyberchip-wang/s3uploader-ui/internal/provision"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
)

// BannerProvisionFailed is shown when folder provisioning failed.
const BannerProvisionFailed = "We couldn't prepare your folders. Some actions may not work until you sign in again."

// Provisioning status values.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// Session is one signed-in user's state.
type Session struct {
	ID       string
	Username string

	client      storage.Client
	provisioner *provision.Provisioner
	panelOpts   []explorer.Option

	once   sync.Once
	mu     sync.Mutex
	status string
	banner string
	panels map[paths.FolderType]*explorer.Panel
	seen   time.Time
}

// Client returns the storage client acting for the session's user.
func (s *Session) Client() storage.Client { return s.client }

// EnsureProvisioned creates the user's folders the first time it is called.
// A failure only sets the banner; later calls do nothing.
func (s *Session) EnsureProvisioned(ctx context.Context) {
	s.once.Do(func() {
		err := s.provisioner.EnsureUserFolders(context.WithoutCancel(ctx), s.client, s.Username)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			logging.WithContext(ctx).Error("provisioning user folders failed",
				zap.String("user", s.Username), zap.Error(err))
			s.status = StatusFailed
			s.banner = BannerProvisionFailed
			return
		}
		s.status = StatusReady
	})
}

// ProvisionStatus reports pending, ready or failed.
func (s *Session) ProvisionStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Banner returns the current banner message, if any.
func (s *Session) Banner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

// DismissBanner hides the banner.
func (s *Session) DismissBanner() {
	s.mu.Lock()
	s.banner = ""
	s.mu.Unlock()
}

// Panel returns the panel for folder, creating it on first use.
func (s *Session) Panel(folder paths.FolderType) (*explorer.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.panels[folder]; ok {
		return p, nil
	}
	p, err := explorer.NewPanel(s.client, s.Username, folder, s.panelOpts...)
	if err != nil {
		return nil, err
	}
	s.panels[folder] = p
	return p, nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.seen = now
	s.mu.Unlock()
}

func (s *Session) lastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen
}

// Manager holds the sessions of all signed-in users.
type Manager struct {
	backend     storage.Backend
	provisioner *provision.Provisioner
	panelOpts   []explorer.Option
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a Manager whose sessions store objects in backend.
func NewManager(backend storage.Backend, panelOpts ...explorer.Option) *Manager {
	return &Manager{
		backend:     backend,
		provisioner: provision.New(),
		panelOpts:   panelOpts,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Begin returns the session for id, creating it when it is new or when it
// belongs to a different username.
func (m *Manager) Begin(ctx context.Context, id, username string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.Username != username {
		s = &Session{
			ID:          id,
			Username:    username,
			client:      storage.ForIdentity(m.backend, username),
			provisioner: m.provisioner,
			panelOpts:   m.panelOpts,
			status:      StatusPending,
			panels:      make(map[paths.FolderType]*explorer.Panel),
		}
		m.sessions[id] = s
		metrics.SetActiveSessions(len(m.sessions))
		logging.WithContext(ctx).Info("session started", zap.String("user", username))
	}
	s.touch(m.now())
	return s
}

// Get returns the session for id without creating one.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// End drops the session for id.
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	metrics.SetActiveSessions(len(m.sessions))
}

// Sweep drops sessions not seen for longer than idle and returns how many
// were dropped.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.lastSeen().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		metrics.SetActiveSessions(len(m.sessions))
	}
	return n
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
