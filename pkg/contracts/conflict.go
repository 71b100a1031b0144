package contracts

// ConflictType classifies an incompatibility between two policies.
type ConflictType string

const (
	ConflictLogicalContradiction  ConflictType = "LOGICAL_CONTRADICTION"
	ConflictSemanticInconsistency ConflictType = "SEMANTIC_INCONSISTENCY"
	ConflictPriority              ConflictType = "PRIORITY_CONFLICT"
	ConflictScope                 ConflictType = "SCOPE_CONFLICT"
	ConflictResource              ConflictType = "RESOURCE_CONFLICT"
)

// ConflictSeverity ranks how serious a conflict is.
type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

// Raise returns the next severity up. Critical stays critical.
func (s ConflictSeverity) Raise() ConflictSeverity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// ResolutionStrategy selects how non-critical conflicts are auto-resolved.
type ResolutionStrategy string

const (
	ResolvePriorityBased       ResolutionStrategy = "priority_based"
	ResolveRoleHierarchyBased  ResolutionStrategy = "role_hierarchy_based"
	ResolvePerformancePriority ResolutionStrategy = "performance_priority"
)

// ConflictReport describes one detected conflict between a policy pair.
// Absence of a winner plus Unresolved=true means human escalation is
// required; that combination on a critical conflict blocks admission.
type ConflictReport struct {
	Type                ConflictType     `json:"type"`
	Severity            ConflictSeverity `json:"severity"`
	PolicyA             string           `json:"policy_a"`
	PolicyB             string           `json:"policy_b"`
	Description         string           `json:"description"`
	SuggestedWinner     string           `json:"suggested_winner,omitempty"` // empty = none
	ResolutionRationale string           `json:"resolution_rationale"`
	Unresolved          bool             `json:"unresolved"`
}

// Blocking reports whether this conflict alone prevents admission.
func (r ConflictReport) Blocking() bool {
	return r.Severity == SeverityCritical && r.Unresolved
}
