// Package assets serves the static files of the wiki pages under
// fingerprinted names.
//
// A Bundle reads its files once and names each one after a hash of its
// content, so pages can reference them with a far-future cache lifetime:
//
//	bundle := assets.Default(true)
//	resolver := assets.NewResolver(bundle.Manifest(), "/geo/_assets/")
//	resolver.Asset(assets.Stylesheet) // "/geo/_assets/wiki.3f2a9c1d.css"
package assets

import (
	"maps"
	"sync"
)

// Manifest maps source file names to their served names.
// It is safe for concurrent use.
type Manifest struct {
	entries map[string]string
	mu      sync.RWMutex
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		entries: make(map[string]string),
	}
}

// Resolve returns the served name for source, or source itself when the
// manifest has no entry for it.
func (m *Manifest) Resolve(source string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if resolved, ok := m.entries[source]; ok {
		return resolved
	}
	return source
}

// Has reports whether the manifest contains source.
func (m *Manifest) Has(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[source]
	return ok
}

// Set adds or updates an entry.
func (m *Manifest) Set(source, resolved string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[source] = resolved
}

// All returns a copy of all entries.
func (m *Manifest) All() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.entries)
}
