// pkg/auth/auth_test.go
package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aerogate/pkg/auth"
)

const (
	testIssuer   = "https://api.uavcrew.ai"
	testAudience = "agent-gateway"
)

func newKeyPair(t *testing.T) (*rsa.PrivateKey, *auth.Validator) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return priv, auth.NewValidator(&priv.PublicKey, testIssuer, testAudience, time.Minute)
}

func signToken(t *testing.T, priv *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()
	tok := jwt.New()
	for k, v := range claims {
		require.NoError(t, tok.Set(k, v))
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, priv))
	require.NoError(t, err)
	return string(signed)
}

func delegationClaims() map[string]any {
	return map[string]any{
		jwt.IssuerKey:     testIssuer,
		jwt.AudienceKey:   testAudience,
		jwt.SubjectKey:    "agent:copilot",
		jwt.ExpirationKey: time.Now().Add(10 * time.Minute),
		jwt.JwtIDKey:      "jti-1",
		"tenant_id":       "tenant-a",
		"org_id":          "org-1",
		"scope":           []string{"pilot", "aircraft"},
		"max_tier":        3,
		"session_id":      "sess-1",
	}
}

func TestValidateDelegation(t *testing.T) {
	priv, v := newKeyPair(t)

	claims, err := v.ValidateDelegation(signToken(t, priv, delegationClaims()))
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", claims.TenantID)
	assert.Equal(t, "org-1", claims.OrgID)
	assert.Equal(t, "copilot", claims.Agent)
	assert.Equal(t, []string{"pilot", "aircraft"}, claims.Scope)
	assert.Equal(t, 3, claims.MaxTier)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "jti-1", claims.JTI)

	assert.True(t, claims.AllowsEntity("pilot"))
	assert.False(t, claims.AllowsEntity("drone"))
}

func TestValidateDelegationWildcardScope(t *testing.T) {
	priv, v := newKeyPair(t)
	c := delegationClaims()
	c["scope"] = "*"

	claims, err := v.ValidateDelegation(signToken(t, priv, c))
	require.NoError(t, err)
	assert.True(t, claims.AllowsEntity("anything"))
}

func TestValidateDelegationLegacyTierName(t *testing.T) {
	priv, v := newKeyPair(t)
	c := delegationClaims()
	c["max_tier"] = "execute"

	claims, err := v.ValidateDelegation(signToken(t, priv, c))
	require.NoError(t, err)
	assert.Equal(t, auth.TierExecute, claims.MaxTier)
}

func TestValidateDelegationRejections(t *testing.T) {
	priv, v := newKeyPair(t)

	cases := map[string]func(map[string]any){
		"expired":          func(c map[string]any) { c[jwt.ExpirationKey] = time.Now().Add(-2 * time.Minute) },
		"wrong issuer":     func(c map[string]any) { c[jwt.IssuerKey] = "https://evil.example.com" },
		"wrong audience":   func(c map[string]any) { c[jwt.AudienceKey] = "other-gateway" },
		"missing tenant":   func(c map[string]any) { delete(c, "tenant_id") },
		"missing exp":      func(c map[string]any) { delete(c, jwt.ExpirationKey) },
		"empty tenant":     func(c map[string]any) { c["tenant_id"] = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := delegationClaims()
			mutate(c)
			_, err := v.ValidateDelegation(signToken(t, priv, c))
			assert.ErrorIs(t, err, auth.ErrUnauthorized)
		})
	}
}

func TestValidateDelegationTamperedSignature(t *testing.T) {
	priv, v := newKeyPair(t)
	raw := signToken(t, priv, delegationClaims())

	// Flip one character inside the signature segment.
	b := []byte(raw)
	i := len(b) - 2
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	_, err := v.ValidateDelegation(string(b))
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestValidateDelegationWrongKey(t *testing.T) {
	priv, _ := newKeyPair(t)
	_, other := newKeyPair(t)

	_, err := other.ValidateDelegation(signToken(t, priv, delegationClaims()))
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func approvalTokenClaims(proposalID string) map[string]any {
	return map[string]any{
		jwt.IssuerKey:     testIssuer,
		jwt.AudienceKey:   testAudience + auth.ApprovalAudience,
		jwt.SubjectKey:    "approver:ops@tenant-a",
		jwt.ExpirationKey: time.Now().Add(5 * time.Minute),
		jwt.JwtIDKey:      "apr-1",
		"proposal_id":     proposalID,
		"tier":            4,
		"session_id":      "approver-sess-1",
	}
}

func TestValidateApproval(t *testing.T) {
	priv, v := newKeyPair(t)

	claims, err := v.ValidateApproval(signToken(t, priv, approvalTokenClaims("prop-1")), "prop-1")
	require.NoError(t, err)
	assert.Equal(t, "prop-1", claims.ProposalID)
	assert.Equal(t, 4, claims.Tier)
	assert.Equal(t, "approver-sess-1", claims.SessionID)
}

func TestValidateApprovalWrongProposal(t *testing.T) {
	priv, v := newKeyPair(t)

	_, err := v.ValidateApproval(signToken(t, priv, approvalTokenClaims("prop-1")), "prop-2")
	assert.ErrorIs(t, err, auth.ErrApprovalInvalid)
}

func TestValidateApprovalDelegationAudienceRejected(t *testing.T) {
	priv, v := newKeyPair(t)
	c := approvalTokenClaims("prop-1")
	c[jwt.AudienceKey] = testAudience // a T1 must never pass as a T2

	_, err := v.ValidateApproval(signToken(t, priv, c), "prop-1")
	assert.ErrorIs(t, err, auth.ErrApprovalInvalid)
}

func TestValidateApprovalDefaultTier(t *testing.T) {
	priv, v := newKeyPair(t)
	c := approvalTokenClaims("prop-1")
	delete(c, "tier")

	claims, err := v.ValidateApproval(signToken(t, priv, c), "prop-1")
	require.NoError(t, err)
	assert.Equal(t, auth.TierExecute, claims.Tier)
}
