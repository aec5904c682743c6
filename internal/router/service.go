// internal/router/service.go
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"
	"go.uber.org/zap"

	"aerogate/internal/policy"
	"aerogate/internal/proposal"
	"aerogate/pkg/apiclient"
	"aerogate/pkg/auth"
	"aerogate/pkg/credentials"
	"aerogate/pkg/manifest"
)

// Operation kinds accepted on the inbound envelope.
const (
	KindGet     = "get"
	KindList    = "list"
	KindSearch  = "search"
	KindAction  = "action"
	KindExecute = "execute"
)

// Request is one inbound operation from the agent platform.
type Request struct {
	Kind       string
	Entity     string
	ID         string
	Action     string
	Params     map[string]any
	Query      map[string]string
	Token      string   // raw T1 delegation token
	ProposalID string   // execute only
	Approvals  []string // raw T2 approval tokens, execute only
}

// Proposed is returned when a write is queued instead of executed.
type Proposed struct {
	ProposalID string    `json:"proposal_id"`
	Status     string    `json:"status"`
	Tier       int       `json:"tier"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Service is the entity router: it decides execute-now, queue-for-
// approval or reject, then issues the downstream call. No store lock is
// ever held across a downstream call, rejected requests never reach the
// downstream API, and each request observes exactly one manifest
// snapshot: the descriptor that was tier-checked is the descriptor that
// executes, even if a reload lands mid-request.
type Service struct {
	tokens    *auth.Validator
	manifests *manifest.Registry
	creds     credentials.Store
	props     proposal.Store
	gate      *policy.Engine
	client    *apiclient.Client
	log       *zap.SugaredLogger
}

func New(tokens *auth.Validator, manifests *manifest.Registry, creds credentials.Store,
	props proposal.Store, gate *policy.Engine, client *apiclient.Client, log *zap.SugaredLogger) *Service {
	return &Service{
		tokens: tokens, manifests: manifests, creds: creds,
		props: props, gate: gate, client: client, log: log,
	}
}

// Handle runs the per-call algorithm. The second return value is non-nil
// exactly when the request is rejected.
func (s *Service) Handle(ctx context.Context, req Request) (any, *Fault) {
	claims, err := s.tokens.ValidateDelegation(req.Token)
	if err != nil {
		return nil, unauthorized()
	}

	m := s.manifests.Current()

	if req.Kind == KindExecute {
		return s.execute(ctx, claims, m, req)
	}

	ent, ok := m.Entities[req.Entity]
	if !ok {
		return nil, unknownEntity(req.Entity)
	}
	if !claims.AllowsEntity(req.Entity) {
		return nil, forbiddenScope(fmt.Sprintf("entity %q is outside the delegation scope", req.Entity))
	}

	switch req.Kind {
	case KindGet, KindList, KindSearch:
		return s.read(ctx, claims, m, ent, req)
	case KindAction:
		return s.action(ctx, claims, m, ent, req)
	default:
		return nil, invalidRequest(fmt.Sprintf("unknown operation kind %q", req.Kind))
	}
}

// read serves tier-1 operations immediately.
func (s *Service) read(ctx context.Context, claims auth.DelegationClaims, m *manifest.Manifest, ent manifest.Entity, req Request) (any, *Fault) {
	if !ent.Read {
		return nil, forbiddenScope(fmt.Sprintf("entity %q does not enable reads", req.Entity))
	}
	if req.Kind == KindSearch && !ent.Search {
		return nil, forbiddenScope(fmt.Sprintf("entity %q does not enable search", req.Entity))
	}
	if claims.MaxTier < auth.TierRead {
		return nil, forbiddenScope("delegation max_tier does not permit reads")
	}

	path := ent.Path
	switch req.Kind {
	case KindGet:
		if ent.Singleton() {
			if req.ID != "" {
				return nil, invalidRequest(fmt.Sprintf("entity %q is a singleton and takes no id", req.Entity))
			}
		} else {
			if req.ID == "" {
				return nil, invalidRequest(fmt.Sprintf("get on entity %q requires an id", req.Entity))
			}
			path += "/" + url.PathEscape(req.ID)
		}
	case KindList:
		if req.ID != "" {
			return nil, invalidRequest("list does not take an id")
		}
	case KindSearch:
		path += "/search"
	}

	token, ferr := s.resolveCredential(ctx, claims.TenantID)
	if ferr != nil {
		return nil, ferr
	}
	res := s.client.Do(ctx, http.MethodGet, joinURL(m.APIBaseURL, path), token, nil, toValues(req.Query))
	return res, nil
}

// action either executes a tier-1/2 action immediately or queues a
// proposal for tier 3+.
func (s *Service) action(ctx context.Context, claims auth.DelegationClaims, m *manifest.Manifest, ent manifest.Entity, req Request) (any, *Fault) {
	if len(ent.Actions) == 0 {
		return nil, noActions(req.Entity)
	}
	act, ok := ent.Actions[req.Action]
	if !ok {
		return nil, unknownAction(req.Entity, req.Action, ent.ActionNames())
	}

	tier := ActionTier(act, req.Action)
	if tier > claims.MaxTier {
		return nil, forbiddenScope(fmt.Sprintf("action %q is tier %d but delegation max_tier is %d",
			req.Action, tier, claims.MaxTier))
	}

	if ent.Singleton() && req.ID != "" {
		return nil, invalidRequest(fmt.Sprintf("entity %q is a singleton and takes no id", req.Entity))
	}
	if strings.Contains(act.Path, "{id}") && req.ID == "" {
		return nil, invalidRequest(fmt.Sprintf("action %q on entity %q requires an id", req.Action, req.Entity))
	}

	if tier <= auth.TierCompute {
		return s.runAction(ctx, claims.TenantID, m.APIBaseURL, act, req)
	}

	// Tier 3+: no downstream call — queue a proposal for human approval.
	dec := s.gate.Decide(ctx, map[string]any{
		"tenant_id": claims.TenantID,
		"entity":    req.Entity,
		"action":    req.Action,
		"tier":      tier,
		"params":    req.Params,
	})
	if !dec.Allow {
		return nil, policyBlocked(dec.Reasons)
	}

	p, err := s.props.Create(ctx, proposal.Proposal{
		TenantID: claims.TenantID,
		Entity:   req.Entity,
		Action:   req.Action,
		TargetID: req.ID,
		Params:   req.Params,
		Tier:     ExecutionTier(tier),
	})
	if err != nil {
		s.log.Errorw("proposal create", "tenant", claims.TenantID, "entity", req.Entity, "err", err)
		return nil, &Fault{Slug: "internal", Status: http.StatusInternalServerError,
			Title: "Internal error", Detail: "could not record proposal"}
	}
	s.log.Infow("proposal queued", "proposal", p.ID, "tenant", p.TenantID,
		"entity", p.Entity, "action", p.Action, "tier", p.Tier, "agent", claims.Agent)
	return Proposed{ProposalID: p.ID, Status: "proposed", Tier: p.Tier, ExpiresAt: p.ExpiresAt}, nil
}

// execute confirms a pending proposal with the required approvals and
// performs the downstream write exactly once.
func (s *Service) execute(ctx context.Context, claims auth.DelegationClaims, m *manifest.Manifest, req Request) (any, *Fault) {
	if req.ProposalID == "" {
		return nil, invalidRequest("execute requires a proposal_id")
	}

	p, err := s.props.Get(ctx, req.ProposalID)
	if ferr := proposalFault(err); ferr != nil {
		return nil, ferr
	}
	// A proposal belongs to the tenant that queued it. Cross-tenant ids
	// look absent rather than forbidden.
	if p.TenantID != claims.TenantID {
		return nil, proposalNotFound()
	}
	if claims.MaxTier < p.Tier {
		return nil, forbiddenScope(fmt.Sprintf("executing this proposal requires tier %d but delegation max_tier is %d",
			p.Tier, claims.MaxTier))
	}

	ent, ok := m.Entities[p.Entity]
	if !ok {
		return nil, unknownEntity(p.Entity)
	}
	if !claims.AllowsEntity(p.Entity) {
		return nil, forbiddenScope(fmt.Sprintf("entity %q is outside the delegation scope", p.Entity))
	}
	act, ok := ent.Actions[p.Action]
	if !ok {
		return nil, unknownAction(p.Entity, p.Action, ent.ActionNames())
	}

	need := ApprovalsRequired(p.Tier)
	if len(req.Approvals) < need {
		return nil, approvalInvalid(fmt.Sprintf("tier %d execution requires %d approval(s)", p.Tier, need))
	}
	sessions := map[string]struct{}{}
	for _, raw := range req.Approvals[:need] {
		ac, err := s.tokens.ValidateApproval(raw, p.ID)
		if err != nil {
			return nil, approvalInvalid("")
		}
		if ac.Tier < p.Tier {
			return nil, approvalInvalid(fmt.Sprintf("approval confirms tier %d but the proposal requires tier %d", ac.Tier, p.Tier))
		}
		sessions[ac.SessionID] = struct{}{}
	}
	if need == 2 && len(sessions) < 2 {
		return nil, approvalInvalid("critical execution requires approvals from two distinct approver sessions")
	}

	// Resolve the credential before consuming so a missing credential
	// rejects without burning the proposal.
	token, ferr := s.resolveCredential(ctx, p.TenantID)
	if ferr != nil {
		return nil, ferr
	}

	// The consume is the exactly-once gate: of any number of racing
	// executors, one proceeds past this line.
	p, err = s.props.Consume(ctx, p.ID)
	if ferr := proposalFault(err); ferr != nil {
		return nil, ferr
	}

	res := s.client.Do(ctx, act.Method, joinURL(m.APIBaseURL, substituteID(act.Path, p.TargetID)), token, p.Params, nil)
	s.log.Infow("proposal executed", "proposal", p.ID, "tenant", p.TenantID,
		"entity", p.Entity, "action", p.Action, "status", res.StatusCode)
	return res, nil
}

// runAction executes a tier-1/2 manifest action immediately, applying the
// optional JMESPath projection for report-style actions. act and baseURL
// come from the snapshot the caller already tier-checked.
func (s *Service) runAction(ctx context.Context, tenantID, baseURL string, act manifest.Action, req Request) (any, *Fault) {
	token, ferr := s.resolveCredential(ctx, tenantID)
	if ferr != nil {
		return nil, ferr
	}
	res := s.client.Do(ctx, act.Method, joinURL(baseURL, substituteID(act.Path, req.ID)), token, req.Params, toValues(req.Query))
	if res.Success && act.Select != "" {
		if projected, err := jmespath.Search(act.Select, res.Data); err == nil {
			res.Data = projected
		} else {
			s.log.Warnw("select projection failed", "entity", req.Entity, "action", req.Action, "err", err)
		}
	}
	return res, nil
}

func (s *Service) resolveCredential(ctx context.Context, tenantID string) (string, *Fault) {
	token, err := s.creds.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return "", credentialMissing(tenantID)
		}
		s.log.Errorw("credential lookup", "tenant", tenantID, "err", err)
		return "", &Fault{Slug: "internal", Status: http.StatusInternalServerError,
			Title: "Internal error", Detail: "credential store unavailable"}
	}
	return token, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func proposalFault(err error) *Fault {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, proposal.ErrNotFound):
		return proposalNotFound()
	case errors.Is(err, proposal.ErrExpired):
		return proposalExpired()
	case errors.Is(err, proposal.ErrConsumed):
		return proposalConsumed()
	default:
		return &Fault{Slug: "internal", Status: http.StatusInternalServerError,
			Title: "Internal error", Detail: "proposal store unavailable"}
	}
}

func substituteID(tmpl, id string) string {
	if id == "" {
		return tmpl
	}
	return strings.ReplaceAll(tmpl, "{id}", url.PathEscape(id))
}

func toValues(q map[string]string) url.Values {
	if len(q) == 0 {
		return nil
	}
	v := url.Values{}
	for k, val := range q {
		v.Set(k, val)
	}
	return v
}
