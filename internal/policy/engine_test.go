// internal/policy/engine_test.go
package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boolPolicy = `
package gateway

default decide = false

decide {
	input.tier <= 3
}
`

const structuredPolicy = `
package gateway

decide = {"allow": allow, "reasons": reasons}

default allow = false

allow {
	not deny[_]
}

deny["critical actions are blocked outside business hours"] {
	input.tier >= 5
}

deny["bulk deletes are never proposed"] {
	input.action == "delete"
	input.params.all == true
}

reasons = [r | deny[r]]
`

func TestNilEngineAllows(t *testing.T) {
	var e *Engine
	dec := e.Decide(context.Background(), map[string]any{"tier": 5})
	assert.True(t, dec.Allow)
}

func TestBoolPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := Compile(ctx, boolPolicy)
	require.NoError(t, err)

	assert.True(t, e.Decide(ctx, map[string]any{"tier": 3}).Allow)
	assert.False(t, e.Decide(ctx, map[string]any{"tier": 5}).Allow)
}

func TestStructuredPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := Compile(ctx, structuredPolicy)
	require.NoError(t, err)

	dec := e.Decide(ctx, map[string]any{"tier": 3, "action": "update", "params": map[string]any{}})
	assert.True(t, dec.Allow)
	assert.Empty(t, dec.Reasons)

	dec = e.Decide(ctx, map[string]any{"tier": 5, "action": "update", "params": map[string]any{}})
	assert.False(t, dec.Allow)
	assert.Contains(t, dec.Reasons, "critical actions are blocked outside business hours")

	dec = e.Decide(ctx, map[string]any{
		"tier": 3, "action": "delete",
		"params": map[string]any{"all": true},
	})
	assert.False(t, dec.Allow)
	assert.Contains(t, dec.Reasons, "bulk deletes are never proposed")
}

func TestCompileRejectsBrokenModule(t *testing.T) {
	_, err := Compile(context.Background(), "package gateway\n\ndecide {")
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.rego")
	require.NoError(t, os.WriteFile(path, []byte(boolPolicy), 0o600))

	e, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.True(t, e.Decide(context.Background(), map[string]any{"tier": 1}).Allow)
}

func TestLoadEmptyPathDisablesGate(t *testing.T) {
	e, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, e)
}
