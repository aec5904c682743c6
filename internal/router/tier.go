// internal/router/tier.go
package router

import (
	"aerogate/pkg/auth"
	"aerogate/pkg/manifest"
)

// Default tier table for actions that do not declare one in the manifest.
// This table is the single source of truth — tiers are never inferred per
// action anywhere else.
//
//	tier 2 (compute):  report, summary, export
//	tier 5 (critical): delete, destroy, purge, revoke, terminate
//	tier 3 (propose):  every other action name
//
// The built-in read kinds (get, list, search) are tier 1 and never reach
// this table.
var (
	computeActions = map[string]struct{}{
		"report": {}, "summary": {}, "export": {},
	}
	criticalActions = map[string]struct{}{
		"delete": {}, "destroy": {}, "purge": {}, "revoke": {}, "terminate": {},
	}
)

// DefaultActionTier resolves the tier of an undeclared action by name.
func DefaultActionTier(name string) int {
	if _, ok := computeActions[name]; ok {
		return auth.TierCompute
	}
	if _, ok := criticalActions[name]; ok {
		return auth.TierCritical
	}
	return auth.TierPropose
}

// ActionTier prefers a manifest-declared tier over the default table.
func ActionTier(a manifest.Action, name string) int {
	if a.Tier != 0 {
		return a.Tier
	}
	return DefaultActionTier(name)
}

// ExecutionTier is the tier a consumed proposal executes at: ordinary
// writes confirm at tier 4, critical ones at tier 5.
func ExecutionTier(actionTier int) int {
	if actionTier >= auth.TierCritical {
		return auth.TierCritical
	}
	return auth.TierExecute
}

// ApprovalsRequired returns how many distinct approvals an execution tier
// demands.
func ApprovalsRequired(executionTier int) int {
	if executionTier >= auth.TierCritical {
		return 2
	}
	return 1
}
