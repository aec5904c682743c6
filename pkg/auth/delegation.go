// pkg/auth/delegation.go
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrUnauthorized is the single failure outcome for delegation token
// validation. Bad signature, expiry, wrong issuer/audience and malformed
// claims all collapse into it so callers cannot probe which check failed.
var ErrUnauthorized = errors.New("unauthorized")

// Privilege tiers. A delegation token's max_tier caps what the router may
// do on the agent's behalf.
const (
	TierRead     = 1 // get, list, search
	TierCompute  = 2 // derived read-only ops (reports)
	TierPropose  = 3 // create/update-class actions queue a proposal
	TierExecute  = 4 // confirmed writes (one approval)
	TierCritical = 5 // destructive actions (two distinct approvals)
)

// legacyTiers maps pre-numeric max_tier names still minted by older
// platform versions.
var legacyTiers = map[string]int{
	"read_only": TierRead,
	"compute":   TierCompute,
	"propose":   TierPropose,
	"execute":   TierExecute,
	"critical":  TierCritical,
}

// DelegationClaims are the verified claims of a T1 delegation token.
// They are scoped to a single call and never outlive it.
type DelegationClaims struct {
	TenantID  string
	OrgID     string
	Agent     string // sub "agent:<name>" with the prefix stripped
	Scope     []string
	MaxTier   int
	SessionID string
	JTI       string
}

// AllowsEntity reports whether the delegation scope covers an entity,
// either by name or via the "*" wildcard.
func (c DelegationClaims) AllowsEntity(entity string) bool {
	for _, s := range c.Scope {
		if s == "*" || s == entity {
			return true
		}
	}
	return false
}

// Validator verifies delegation and approval tokens against the
// distributed public key. It makes no external calls.
type Validator struct {
	key      any // jwk.Key or *rsa.PublicKey
	issuer   string
	audience string
	skew     time.Duration
}

func NewValidator(key any, issuer, audience string, skew time.Duration) *Validator {
	return &Validator{key: key, issuer: issuer, audience: audience, skew: skew}
}

// ValidateDelegation verifies a T1 token and extracts its claims. It is a
// pure function: no state is recorded, and every failure mode returns
// ErrUnauthorized.
func (v *Validator) ValidateDelegation(raw string) (DelegationClaims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.RS256, v.key),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
		jwt.WithRequiredClaim("exp"),
		jwt.WithRequiredClaim("sub"),
		jwt.WithRequiredClaim("tenant_id"),
	)
	if err != nil {
		return DelegationClaims{}, ErrUnauthorized
	}

	tenantID := stringClaim(tok, "tenant_id")
	if tenantID == "" {
		return DelegationClaims{}, ErrUnauthorized
	}

	agent := tok.Subject()
	agent = strings.TrimPrefix(agent, "agent:")

	return DelegationClaims{
		TenantID:  tenantID,
		OrgID:     stringClaim(tok, "org_id"),
		Agent:     agent,
		Scope:     scopeClaim(tok),
		MaxTier:   tierClaim(tok, "max_tier", TierRead),
		SessionID: stringClaim(tok, "session_id"),
		JTI:       tok.JwtID(),
	}, nil
}

func stringClaim(tok jwt.Token, name string) string {
	if v, ok := tok.Get(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// scopeClaim accepts both a JSON array of entity names and a
// space-separated string (OAuth style).
func scopeClaim(tok jwt.Token) []string {
	v, ok := tok.Get("scope")
	if !ok {
		return nil
	}
	switch sc := v.(type) {
	case string:
		return strings.Fields(sc)
	case []any:
		out := make([]string, 0, len(sc))
		for _, e := range sc {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return sc
	}
	return nil
}

// tierClaim accepts a numeric tier or a legacy tier name.
func tierClaim(tok jwt.Token, name string, def int) int {
	v, ok := tok.Get(name)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		if n := int(t); n >= TierRead && n <= TierCritical {
			return n
		}
	case int:
		if t >= TierRead && t <= TierCritical {
			return t
		}
	case string:
		if n, ok := legacyTiers[t]; ok {
			return n
		}
	}
	return def
}
