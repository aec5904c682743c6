// pkg/credentials/memory.go
package credentials

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	token     string
	name      string
	createdAt time.Time
}

// memStore is the in-memory credential store used for dev and tests.
type memStore struct {
	mu      sync.RWMutex
	tenants map[string]memEntry
}

func NewMemoryStore() Store {
	return &memStore{tenants: map[string]memEntry{}}
}

func (m *memStore) Register(_ context.Context, tenantID, token, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tenants[tenantID]
	if !ok {
		e = memEntry{createdAt: time.Now().UTC()}
	}
	e.token = token
	e.name = name
	m.tenants[tenantID] = e
	return nil
}

func (m *memStore) Get(_ context.Context, tenantID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tenants[tenantID]
	if !ok {
		return "", ErrNotFound
	}
	return e.token, nil
}

func (m *memStore) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.tenants))
	for id, e := range m.tenants {
		out = append(out, Entry{
			TenantID:    id,
			Name:        e.name,
			TokenPrefix: Redact(e.token),
			CreatedAt:   e.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

func (m *memStore) Remove(_ context.Context, tenantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[tenantID]; !ok {
		return false, nil
	}
	delete(m.tenants, tenantID)
	return true, nil
}
