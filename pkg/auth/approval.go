// pkg/auth/approval.go
package auth

import (
	"errors"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrApprovalInvalid collapses every approval token failure mode, same as
// ErrUnauthorized does for delegation tokens.
var ErrApprovalInvalid = errors.New("approval invalid")

// ApprovalClaims are the verified claims of a T2 approval token. A T2
// authorizes execution of exactly one pending proposal; single use is
// enforced downstream by atomic proposal consumption.
type ApprovalClaims struct {
	ProposalID string
	Tier       int    // confirmed tier
	SessionID  string // approver session; tier-5 requires two distinct ones
	JTI        string
}

// ApprovalAudience is the audience suffix that distinguishes T2 tokens
// from delegation tokens minted for the same gateway.
const ApprovalAudience = "/approvals"

// ValidateApproval verifies a T2 token and checks that it is bound to the
// proposal being executed. All failures return ErrApprovalInvalid.
func (v *Validator) ValidateApproval(raw, expectedProposalID string) (ApprovalClaims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.RS256, v.key),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience+ApprovalAudience),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
		jwt.WithRequiredClaim("exp"),
		jwt.WithRequiredClaim("proposal_id"),
	)
	if err != nil {
		return ApprovalClaims{}, ErrApprovalInvalid
	}

	proposalID := stringClaim(tok, "proposal_id")
	if proposalID == "" || proposalID != expectedProposalID {
		return ApprovalClaims{}, ErrApprovalInvalid
	}

	return ApprovalClaims{
		ProposalID: proposalID,
		Tier:       tierClaim(tok, "tier", TierExecute),
		SessionID:  stringClaim(tok, "session_id"),
		JTI:        tok.JwtID(),
	}, nil
}
