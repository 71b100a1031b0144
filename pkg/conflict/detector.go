// Package conflict compares a candidate policy against active policies
// and classifies pairwise incompatibilities. Detection is pure and
// symmetric: detect(A,B) and detect(B,A) report the same conflict types
// with the policy IDs swapped.
//
// Absence of a conflict is meaningful output, so detection never
// returns an error; every outcome is reported, not thrown.
package conflict

import (
	"fmt"
	"sort"

	"github.com/concord-labs/concord/pkg/contracts"
	"github.com/concord-labs/concord/pkg/registry"
)

// Detector classifies conflicts and applies a resolution strategy to
// the non-critical ones.
type Detector struct {
	strategy contracts.ResolutionStrategy
	reg      *registry.Registry
}

// NewDetector creates a detector. The registry supplies the
// mandatory-linked categories that escalate severity to critical.
func NewDetector(strategy contracts.ResolutionStrategy, reg *registry.Registry) *Detector {
	return &Detector{strategy: strategy, reg: reg}
}

// Detect compares one candidate against every active policy. O(n) in
// the number of active policies.
func (d *Detector) Detect(candidate contracts.Policy, actives []contracts.Policy) []contracts.ConflictReport {
	var reports []contracts.ConflictReport
	for _, active := range actives {
		if active.ID == candidate.ID {
			continue
		}
		reports = append(reports, d.classify(candidate, active)...)
	}
	return reports
}

// DetectAll sweeps a full active set pairwise. O(n²); used for
// consistency audits of an already-admitted set.
func (d *Detector) DetectAll(policies []contracts.Policy) []contracts.ConflictReport {
	var reports []contracts.ConflictReport
	for i := 0; i < len(policies); i++ {
		for j := i + 1; j < len(policies); j++ {
			reports = append(reports, d.classify(policies[i], policies[j])...)
		}
	}
	return reports
}

// classify evaluates every conflict type for one pair. A pair may
// produce zero, one, or several reports.
func (d *Detector) classify(a, b contracts.Policy) []contracts.ConflictReport {
	var reports []contracts.ConflictReport

	add := func(kind contracts.ConflictType, base contracts.ConflictSeverity, description string) {
		r := contracts.ConflictReport{
			Type:        kind,
			Severity:    base,
			PolicyA:     a.ID,
			PolicyB:     b.ID,
			Description: description,
		}
		if d.mandatoryLinked(a) || d.mandatoryLinked(b) {
			r.Severity = contracts.SeverityCritical
		}
		d.resolve(&r, a, b)
		reports = append(reports, r)
	}

	if a.Subject == b.Subject && a.Resource == b.Resource &&
		oppositeActions(a.Action, b.Action) && conditionsOverlap(a.Conditions, b.Conditions) {
		add(contracts.ConflictLogicalContradiction, contracts.SeverityHigh,
			fmt.Sprintf("policies %q and %q declare opposite actions for (%s, %s) under overlapping conditions",
				a.ID, b.ID, a.Subject, a.Resource))
	}

	if a.Category != "" && a.Category == b.Category && a.Scope == b.Scope {
		if contested := directionClash(a, b); len(contested) > 0 {
			add(contracts.ConflictSemanticInconsistency, contracts.SeverityLow,
				fmt.Sprintf("policies %q and %q pull category %q in opposite directions over %v",
					a.ID, b.ID, a.Category, contested))
		}
	}

	if a.Priority == b.Priority && a.Action != b.Action && conditionsOverlap(a.Conditions, b.Conditions) {
		add(contracts.ConflictPriority, contracts.SeverityMedium,
			fmt.Sprintf("policies %q and %q share priority %d with differing actions; precedence is ambiguous",
				a.ID, b.ID, a.Priority))
	}

	if scopesOverlap(a.Scope, b.Scope) && a.Action != b.Action {
		add(contracts.ConflictScope, contracts.SeverityMedium,
			fmt.Sprintf("policies %q and %q overlap on scope (%s, %s) with differing effects",
				a.ID, b.ID, a.Scope.Domain, a.Scope.Context))
	}

	if contested := intersect(a.ExclusiveResources, b.ExclusiveResources); len(contested) > 0 {
		add(contracts.ConflictResource, contracts.SeverityHigh,
			fmt.Sprintf("policies %q and %q both require exclusive access to %v",
				a.ID, b.ID, contested))
	}

	return reports
}

func (d *Detector) mandatoryLinked(p contracts.Policy) bool {
	return d.reg != nil && d.reg.MandatoryCategory(p.Category)
}

func oppositeActions(a, b contracts.PolicyAction) bool {
	return (a.Permissive() && b.Restrictive()) || (a.Restrictive() && b.Permissive())
}

// conditionsOverlap holds when the two sets share a condition or either
// policy is unconditional.
func conditionsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	return len(intersect(a, b)) > 0
}

// scopesOverlap requires both policies to be explicitly scoped; a "*"
// wildcard matches any declared value. Unscoped policies never raise a
// scope conflict (a logical contradiction covers the unscoped case).
func scopesOverlap(a, b contracts.Scope) bool {
	return fieldOverlap(a.Domain, b.Domain) && fieldOverlap(a.Context, b.Context)
}

func fieldOverlap(x, y string) bool {
	if x == "" || y == "" {
		return false
	}
	return x == y || x == "*" || y == "*"
}

// directionClash returns the behaviors one policy requires and the
// other forbids.
func directionClash(a, b contracts.Policy) []string {
	clash := append(intersect(a.Requires, b.Forbids), intersect(b.Requires, a.Forbids)...)
	sort.Strings(clash)
	return clash
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	var out []string
	for _, s := range b {
		if set[s] {
			out = append(out, s)
			set[s] = false // report each element once
		}
	}
	sort.Strings(out)
	return out
}
