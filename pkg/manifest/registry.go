// pkg/manifest/registry.go
package manifest

import (
	"sync/atomic"
)

// Registry holds the current manifest behind an atomic pointer. Lookups
// read a consistent snapshot; Reload swaps the whole structure so no
// reader ever observes a half-updated manifest.
type Registry struct {
	path string
	cur  atomic.Pointer[Manifest]
}

// NewRegistry loads the manifest at path and fails fast on invalid input.
func NewRegistry(path string) (*Registry, error) {
	m, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	r := &Registry{path: path}
	r.cur.Store(m)
	return r, nil
}

// NewRegistryFrom wraps an already-parsed manifest (used by tests and
// embedded deployments).
func NewRegistryFrom(m *Manifest) *Registry {
	r := &Registry{}
	r.cur.Store(m)
	return r
}

// Current returns the active manifest snapshot.
func (r *Registry) Current() *Manifest { return r.cur.Load() }

// Reload re-reads the manifest file. The running manifest stays in place
// if the new one fails validation.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}
	m, err := LoadFile(r.path)
	if err != nil {
		return err
	}
	r.cur.Store(m)
	return nil
}

// Entity resolves an entity by name from the current snapshot.
func (r *Registry) Entity(name string) (Entity, bool) {
	e, ok := r.Current().Entities[name]
	return e, ok
}

// EntityNames lists declared entity names from the current snapshot.
func (r *Registry) EntityNames() []string {
	m := r.Current()
	names := make([]string, 0, len(m.Entities))
	for n := range m.Entities {
		names = append(names, n)
	}
	return names
}
