// internal/proposal/proposal.go
package proposal

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound covers unknown ids. Expired proposals behave as absent
	// in stores that cannot distinguish (Redis TTL eviction).
	ErrNotFound = errors.New("proposal not found")
	// ErrExpired is returned when a known proposal is past its lifetime.
	ErrExpired = errors.New("proposal expired")
	// ErrConsumed is returned on any attempt after the one successful
	// consumption.
	ErrConsumed = errors.New("proposal already consumed")
)

// Proposal is a queued, not-yet-executed write awaiting approval. The
// stored entity/action/params are what executes — never the executing
// caller's copy.
type Proposal struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Entity    string         `json:"entity"`
	Action    string         `json:"action"`
	TargetID  string         `json:"target_id,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Tier      int            `json:"tier"` // execution tier: 4 ordinary, 5 critical
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Store records pending proposals. Consume is the only mutation after
// Create and must succeed exactly once per proposal, even under
// concurrent attempts.
type Store interface {
	// Create assigns a fresh unguessable id and records the proposal.
	Create(ctx context.Context, p Proposal) (Proposal, error)
	// Get returns a pending proposal. Errors: ErrNotFound, ErrExpired,
	// ErrConsumed.
	Get(ctx context.Context, id string) (Proposal, error)
	// Consume atomically marks the proposal executed and returns it.
	// Exactly one caller observes success; the rest get ErrConsumed (or
	// ErrNotFound/ErrExpired).
	Consume(ctx context.Context, id string) (Proposal, error)
}
