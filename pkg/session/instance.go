// Package session creates and tracks per-browser application instances.
//
// An Instance is the unit of user state: it references the shared backend,
// owns its own copy of the effective configuration, and remembers the current
// display language and page. Instances are built by a Factory and kept alive
// by a Manager, which ties them to a session cookie and expires them after an
// idle timeout.
//
//	f := session.NewFactory("geo", session.WithFactoryLogger(logger))
//	m := session.NewManager(f, acq.Backend, acq.Config, session.DefaultManagerConfig(), logger)
//	defer m.Shutdown(ctx)
//
//	inst, isNew, err := m.Resolve(w, r)
package session

import (
	"sync"
	"time"

	"github.com/vango-dev/cnlwiki/pkg/backend"
	"github.com/vango-dev/cnlwiki/pkg/params"
)

// Instance is one user's application state.
type Instance struct {
	id        string
	backend   *backend.Backend
	config    params.Params
	createdAt time.Time

	mu         sync.RWMutex
	language   string
	page       string
	lastActive time.Time
}

// ID returns the session identifier.
func (i *Instance) ID() string { return i.id }

// Backend returns the shared backend. It is never nil.
func (i *Instance) Backend() *backend.Backend { return i.backend }

// Config returns a copy of the instance configuration.
func (i *Instance) Config() params.Params { return i.config.Clone() }

// Parameter returns one configuration value.
func (i *Instance) Parameter(key string) string { return i.config.Get(key) }

// CreatedAt returns when the instance was created.
func (i *Instance) CreatedAt() time.Time { return i.createdAt }

// Language returns the current display language.
func (i *Instance) Language() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.language
}

// SetLanguage switches the display language. The request is matched against
// the backend's configured languages; it reports false and leaves the
// language unchanged when nothing matches.
func (i *Instance) SetLanguage(requested string) bool {
	lang, ok := i.backend.MatchLanguage(requested)
	if !ok {
		return false
	}
	i.mu.Lock()
	i.language = lang
	i.mu.Unlock()
	return true
}

// Page returns the ID of the sentence currently shown, or "" for the index.
func (i *Instance) Page() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.page
}

// SetPage records the sentence currently shown.
func (i *Instance) SetPage(id string) {
	i.mu.Lock()
	i.page = id
	i.mu.Unlock()
}

// Touch marks the instance as used at t.
func (i *Instance) Touch(t time.Time) {
	i.mu.Lock()
	if t.After(i.lastActive) {
		i.lastActive = t
	}
	i.mu.Unlock()
}

// LastActive returns when the instance was last used.
func (i *Instance) LastActive() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lastActive
}
