// internal/router/fault.go
package router

import (
	"fmt"
	"net/http"
	"strings"
)

// Fault is a rejected request. Slug identifies the taxonomy member and
// doubles as the RFC 7807 problem-type slug on the wire.
type Fault struct {
	Slug   string
	Status int
	Title  string
	Detail string
	Extra  map[string]any
}

func (f *Fault) Error() string { return f.Slug + ": " + f.Detail }

// Unauthorized deliberately carries no detail: bad signature, expiry and
// wrong issuer/audience are indistinguishable to the caller.
func unauthorized() *Fault {
	return &Fault{Slug: "unauthorized", Status: http.StatusUnauthorized,
		Title: "Unauthorized", Detail: "delegation token invalid"}
}

func approvalInvalid(detail string) *Fault {
	if detail == "" {
		detail = "approval token invalid"
	}
	return &Fault{Slug: "approval-invalid", Status: http.StatusUnauthorized,
		Title: "Approval invalid", Detail: detail}
}

func forbiddenScope(detail string) *Fault {
	return &Fault{Slug: "forbidden-scope", Status: http.StatusForbidden,
		Title: "Outside delegation", Detail: detail}
}

func policyBlocked(reasons []string) *Fault {
	return &Fault{Slug: "policy-blocked", Status: http.StatusForbidden,
		Title: "Blocked by policy", Detail: "the tenant write policy rejected this action",
		Extra: map[string]any{"reasons": reasons}}
}

func unknownEntity(name string) *Fault {
	return &Fault{Slug: "unknown-entity", Status: http.StatusNotFound,
		Title: "Unknown entity", Detail: fmt.Sprintf("entity %q is not declared in the manifest", name)}
}

func unknownAction(entity, action string, valid []string) *Fault {
	return &Fault{Slug: "unknown-action", Status: http.StatusNotFound,
		Title: "Unknown action",
		Detail: fmt.Sprintf("entity %q has no action %q; declared actions: %s",
			entity, action, strings.Join(valid, ", ")),
		Extra: map[string]any{"valid_actions": valid}}
}

func noActions(entity string) *Fault {
	return &Fault{Slug: "no-actions", Status: http.StatusNotFound,
		Title: "No actions available", Detail: fmt.Sprintf("entity %q declares no actions", entity)}
}

// credentialMissing is distinct from unauthorized so operators can
// diagnose onboarding gaps; it never reveals anything about tokens.
func credentialMissing(tenantID string) *Fault {
	return &Fault{Slug: "credential-missing", Status: http.StatusPreconditionFailed,
		Title: "Credential missing", Detail: fmt.Sprintf("no downstream credential registered for tenant %s", tenantID)}
}

func proposalNotFound() *Fault {
	return &Fault{Slug: "proposal-not-found", Status: http.StatusNotFound,
		Title: "Proposal not found", Detail: "no pending proposal matches that id"}
}

func proposalExpired() *Fault {
	return &Fault{Slug: "proposal-expired", Status: http.StatusConflict,
		Title: "Proposal expired", Detail: "the proposal lapsed before execution; propose again"}
}

func proposalConsumed() *Fault {
	return &Fault{Slug: "proposal-already-consumed", Status: http.StatusConflict,
		Title: "Proposal already consumed", Detail: "the proposal was already executed"}
}

func invalidRequest(detail string) *Fault {
	return &Fault{Slug: "invalid-request", Status: http.StatusBadRequest,
		Title: "Invalid request", Detail: detail}
}
