// internal/proposal/memory.go
package proposal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRecord struct {
	p        Proposal
	consumed bool
}

// memStore keeps proposals in process memory. Expiry is enforced lazily
// on access; a bounded sweep during Create keeps the map from growing —
// no background tasks run in this core.
type memStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	recs map[string]*memRecord
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) Store {
	return &memStore{ttl: ttl, recs: map[string]*memRecord{}, now: time.Now}
}

func (m *memStore) Create(_ context.Context, p Proposal) (Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	for id, r := range m.recs {
		if now.Sub(r.p.ExpiresAt) > m.ttl {
			delete(m.recs, id)
		}
	}
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.ExpiresAt = now.Add(m.ttl)
	m.recs[p.ID] = &memRecord{p: p}
	return p, nil
}

func (m *memStore) Get(_ context.Context, id string) (Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	if r.consumed {
		return Proposal{}, ErrConsumed
	}
	if m.now().After(r.p.ExpiresAt) {
		return Proposal{}, ErrExpired
	}
	return r.p, nil
}

func (m *memStore) Consume(_ context.Context, id string) (Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	if r.consumed {
		return Proposal{}, ErrConsumed
	}
	if m.now().After(r.p.ExpiresAt) {
		return Proposal{}, ErrExpired
	}
	r.consumed = true
	return r.p, nil
}
