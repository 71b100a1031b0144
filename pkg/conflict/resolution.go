package conflict

import (
	"fmt"

	"github.com/concord-labs/concord/pkg/contracts"
)

const unresolvedRationale = "unresolved — requires human escalation"

// resolve applies the configured strategy to one report. Critical
// conflicts are never auto-resolved. A strategy that cannot produce a
// deterministic winner marks the conflict unresolved and raises its
// severity one level.
func (d *Detector) resolve(r *contracts.ConflictReport, a, b contracts.Policy) {
	if r.Severity == contracts.SeverityCritical {
		r.Unresolved = true
		r.ResolutionRationale = "critical severity: automatic resolution disabled, requires human escalation"
		return
	}

	if d.strategy == contracts.ResolvePerformancePriority && r.Type == contracts.ConflictResource {
		// Scheduling hint instead of a winner: the contested resources
		// can be serialized rather than one policy losing.
		r.ResolutionRationale = "serialize access to the contested resources"
		return
	}

	switch d.strategy {
	case contracts.ResolveRoleHierarchyBased:
		d.pickWinner(r, a, b, a.Tier.Rank(), b.Tier.Rank(),
			fmt.Sprintf("governance tier %q outranks %q", higherTier(a, b).Tier, lowerTier(a, b).Tier))
	default:
		// priority_based is also the fallback when performance_priority
		// is selected for a non-resource conflict.
		d.pickWinner(r, a, b, a.Priority, b.Priority,
			fmt.Sprintf("priority %d outranks %d", maxInt(a.Priority, b.Priority), minInt(a.Priority, b.Priority)))
	}
}

func (d *Detector) pickWinner(r *contracts.ConflictReport, a, b contracts.Policy, rankA, rankB int, rationale string) {
	switch {
	case rankA > rankB:
		r.SuggestedWinner = a.ID
		r.ResolutionRationale = rationale
	case rankB > rankA:
		r.SuggestedWinner = b.ID
		r.ResolutionRationale = rationale
	default:
		r.Unresolved = true
		r.ResolutionRationale = unresolvedRationale
		r.Severity = r.Severity.Raise()
	}
}

func higherTier(a, b contracts.Policy) contracts.Policy {
	if a.Tier.Rank() >= b.Tier.Rank() {
		return a
	}
	return b
}

func lowerTier(a, b contracts.Policy) contracts.Policy {
	if a.Tier.Rank() < b.Tier.Rank() {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
