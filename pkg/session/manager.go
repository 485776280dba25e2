package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vango-dev/cnlwiki/pkg/backend"
	"github.com/vango-dev/cnlwiki/pkg/metrics"
	"github.com/vango-dev/cnlwiki/pkg/params"
)

// Manager tracks the live instances of one deployed application.
type Manager struct {
	mu sync.RWMutex

	// All instances by session ID
	sessions map[string]*Instance

	factory *Factory
	backend *backend.Backend
	params  params.Params
	config  ManagerConfig
	metrics *metrics.Collector
	logger  *slog.Logger

	now func() time.Time

	// Lifecycle
	done    chan struct{}
	stopped bool
}

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// CookieName names the session cookie.
	// Default: "cnlwiki_session".
	CookieName string

	// CookiePath scopes the cookie to the instance mount.
	// Default: "/".
	CookiePath string

	// SecureCookies sets the Secure flag on the session cookie.
	SecureCookies bool

	// IdleTimeout is how long an unused instance is kept.
	// Default: 30 minutes.
	IdleTimeout time.Duration

	// CleanupInterval is how often idle instances are removed.
	// Default: 1 minute.
	CleanupInterval time.Duration

	// Metrics records session gauges. Optional.
	Metrics *metrics.Collector
}

// DefaultCookieName is the session cookie name when none is configured.
const DefaultCookieName = "cnlwiki_session"

// DefaultManagerConfig returns a ManagerConfig with sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		CookieName:      DefaultCookieName,
		CookiePath:      "/",
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: 1 * time.Minute,
	}
}

var (
	// ErrManagerStopped is returned when operations are attempted on a stopped manager.
	ErrManagerStopped = errors.New("session: manager is stopped")
)

// NewManager creates a manager that builds instances with f, bound to b and
// configured with cfg.
func NewManager(f *Factory, b *backend.Backend, cfg params.Params, config ManagerConfig, logger *slog.Logger) *Manager {
	def := DefaultManagerConfig()
	if config.CookieName == "" {
		config.CookieName = def.CookieName
	}
	if config.CookiePath == "" {
		config.CookiePath = def.CookiePath
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = def.IdleTimeout
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		sessions: make(map[string]*Instance),
		factory:  f,
		backend:  b,
		params:   cfg.Clone(),
		config:   config,
		metrics:  config.Metrics,
		logger:   logger.With("component", "session_manager", "instance", f.Name()),
		now:      f.now,
		done:     make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

// Resolve returns the instance for the request's session cookie. When the
// cookie is missing or names an unknown or expired session, a new instance is
// created, the cookie is set on w, and isNew is true.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (inst *Instance, isNew bool, err error) {
	m.mu.RLock()
	stopped := m.stopped
	m.mu.RUnlock()
	if stopped {
		return nil, false, ErrManagerStopped
	}

	now := m.now()
	if c, err := r.Cookie(m.config.CookieName); err == nil && c.Value != "" {
		inst = m.Get(c.Value)
		if inst != nil && now.Sub(inst.LastActive()) < m.config.IdleTimeout {
			inst.Touch(now)
			return inst, false, nil
		}
		if inst != nil {
			m.Remove(inst.ID())
		}
	}

	inst = m.factory.Create(m.backend, m.params)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		m.metrics.SessionClosed()
		return nil, false, ErrManagerStopped
	}
	m.sessions[inst.ID()] = inst
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    inst.ID(),
		Path:     m.config.CookiePath,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   m.config.SecureCookies,
	})
	return inst, true, nil
}

// Lookup returns the live instance named by the request's session cookie
// without creating one. It returns nil when there is none or it is idle.
func (m *Manager) Lookup(r *http.Request) *Instance {
	c, err := r.Cookie(m.config.CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	inst := m.Get(c.Value)
	if inst == nil {
		return nil
	}
	now := m.now()
	if now.Sub(inst.LastActive()) >= m.config.IdleTimeout {
		return nil
	}
	inst.Touch(now)
	return inst
}

// Get returns the instance with the given session ID, or nil.
func (m *Manager) Get(id string) *Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Count returns the number of live instances.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Remove ends a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

func (m *Manager) removeLocked(id string) {
	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	m.metrics.SessionClosed()
}

// cleanupLoop periodically removes idle instances.
func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdle()
		case <-m.done:
			return
		}
	}
}

func (m *Manager) cleanupIdle() {
	cutoff := m.now().Add(-m.config.IdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, inst := range m.sessions {
		if inst.LastActive().Before(cutoff) {
			m.removeLocked(id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("removed idle sessions", "count", removed)
	}
}

// Shutdown stops the cleanup loop and drops all instances. The backend is
// not closed; it belongs to whoever acquired it.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true
	close(m.done)

	count := len(m.sessions)
	for id := range m.sessions {
		m.removeLocked(id)
	}
	m.logger.Info("session manager stopped", "sessions", count)
	return ctx.Err()
}
