// internal/policy/engine.go
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Decision is the outcome of the write-policy gate.
type Decision struct {
	Allow   bool
	Reasons []string
}

// Engine evaluates an optional rego module before proposals are created.
// A nil engine (no module configured) always allows — the policy gate is
// an extra brake, not the primary authorization path.
type Engine struct {
	query rego.PreparedEvalQuery
}

// Load compiles the module at path and prepares the `data.gateway.decide`
// entrypoint. An empty path yields a nil engine.
func Load(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return nil, nil
	}
	mod, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Compile(ctx, string(mod))
}

// Compile prepares an engine from rego source.
func Compile(ctx context.Context, module string) (*Engine, error) {
	q, err := rego.New(
		rego.Query("data.gateway.decide"),
		rego.Module("gateway.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	return &Engine{query: q}, nil
}

// Decide evaluates the policy with the pending write as input. Evaluation
// errors block: a broken policy must not silently open the gate.
func (e *Engine) Decide(ctx context.Context, input map[string]any) Decision {
	if e == nil {
		return Decision{Allow: true}
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{Allow: false, Reasons: []string{"policy_error"}}
	}
	out := rs[0].Expressions[0].Value
	switch v := out.(type) {
	case bool:
		return Decision{Allow: v}
	case map[string]any:
		dec := Decision{}
		if allow, ok := v["allow"].(bool); ok {
			dec.Allow = allow
		}
		if reasons, ok := v["reasons"].([]any); ok {
			for _, r := range reasons {
				if s, ok := r.(string); ok {
					dec.Reasons = append(dec.Reasons, s)
				}
			}
		}
		return dec
	}
	return Decision{Allow: false, Reasons: []string{"policy_error"}}
}
