// pkg/credentials/store.go
package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound means no credential is registered for a tenant. This is a
// normal outcome; the router rejects the request fail-closed.
var ErrNotFound = errors.New("tenant credential not found")

// Entry is a redacted listing row. Full tokens are never listed.
type Entry struct {
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	TokenPrefix string    `json:"token_prefix"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store maps tenant_id to the downstream API credential (K4) used on that
// tenant's behalf. Credentials are supplied administratively and never
// auto-expired here.
type Store interface {
	// Register upserts a tenant credential.
	Register(ctx context.Context, tenantID, token, name string) error
	// Get returns the downstream token for a tenant or ErrNotFound.
	Get(ctx context.Context, tenantID string) (string, error)
	// List returns all registered tenants with redacted token prefixes.
	List(ctx context.Context) ([]Entry, error)
	// Remove deletes a tenant credential, reporting whether it existed.
	Remove(ctx context.Context, tenantID string) (bool, error)
}

// Redact keeps a short recognizable prefix of a token for listings.
func Redact(token string) string {
	const keep = 6
	if len(token) <= keep {
		return "****"
	}
	return token[:keep] + "****"
}
