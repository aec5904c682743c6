// pkg/credentials/memory_test.go
package credentials

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Register(ctx, "tenant-a", "token-aaaa", "Tenant A"))
	require.NoError(t, s.Register(ctx, "tenant-b", "token-bbbb", "Tenant B"))

	tok, err := s.Get(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "token-aaaa", tok)

	// Tenant isolation: B's token is never A's.
	tok, err = s.Get(ctx, "tenant-b")
	require.NoError(t, err)
	assert.Equal(t, "token-bbbb", tok)

	_, err = s.Get(ctx, "tenant-c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Register(ctx, "tenant-a", "old-token", ""))
	require.NoError(t, s.Register(ctx, "tenant-a", "new-token", "renamed"))

	tok, err := s.Get(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "new-token", tok)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "renamed", entries[0].Name)
}

func TestMemoryStoreListRedacts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Register(ctx, "tenant-a", "supersecrettoken", ""))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "supers****", entries[0].TokenPrefix)
	assert.NotContains(t, entries[0].TokenPrefix, "secrettoken")
}

func TestMemoryStoreRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Register(ctx, "tenant-a", "tok", ""))

	removed, err := s.Remove(ctx, "tenant-a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove(ctx, "tenant-a")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.Get(ctx, "tenant-a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConcurrentRegister(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("tenant-%d", i)
			_ = s.Register(ctx, id, "tok-"+id, "")
			_, _ = s.Get(ctx, id)
		}(i)
	}
	wg.Wait()

	entries, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 32)
}

func TestRedactShortToken(t *testing.T) {
	assert.Equal(t, "****", Redact("abc"))
	assert.Equal(t, "****", Redact(""))
}
