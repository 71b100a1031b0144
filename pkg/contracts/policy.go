package contracts

// PolicyAction is the effect a policy declares.
type PolicyAction string

const (
	ActionAllow  PolicyAction = "allow"
	ActionDeny   PolicyAction = "deny"
	ActionPermit PolicyAction = "permit"
	ActionForbid PolicyAction = "forbid"
)

// Permissive reports whether the action grants access.
func (a PolicyAction) Permissive() bool {
	return a == ActionAllow || a == ActionPermit
}

// Restrictive reports whether the action withholds access.
func (a PolicyAction) Restrictive() bool {
	return a == ActionDeny || a == ActionForbid
}

// GovernanceTier orders policies by constitutional standing.
type GovernanceTier string

const (
	TierConstitutional GovernanceTier = "constitutional"
	TierOperational    GovernanceTier = "operational"
	TierProcedural     GovernanceTier = "procedural"
)

// Rank returns the tier's position in the hierarchy; higher outranks lower.
func (t GovernanceTier) Rank() int {
	switch t {
	case TierConstitutional:
		return 3
	case TierOperational:
		return 2
	case TierProcedural:
		return 1
	default:
		return 0
	}
}

// RiskLevel is the declared risk classification of a policy. It selects
// the minimum compliance score the policy must reach.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Scope bounds where a policy applies.
type Scope struct {
	Domain  string `json:"domain"`
	Context string `json:"context"`
}

// Policy is a candidate or active governance rule. Policies are created
// externally; the engine only reads them.
type Policy struct {
	ID       string       `json:"id"`
	Content  string       `json:"content"`
	Action   PolicyAction `json:"action"`
	Priority int          `json:"priority"`
	Subject  string       `json:"subject"`
	Resource string       `json:"resource"`

	Category PrincipleCategory `json:"category,omitempty"`
	Scope    Scope             `json:"scope"`
	Tier     GovernanceTier    `json:"governance_tier"`
	Risk     RiskLevel         `json:"risk_level"`

	// Conditions gate when the policy applies. Two policies overlap when
	// they share at least one condition, or either set is empty
	// (unconditional).
	Conditions []string `json:"conditions,omitempty"`

	// Requires and Forbids declare the policy's direction: behaviors it
	// demands and behaviors it prohibits.
	Requires []string `json:"requires,omitempty"`
	Forbids  []string `json:"forbids,omitempty"`

	// ExclusiveResources lists resource identifiers this policy needs
	// exclusive access to.
	ExclusiveResources []string `json:"exclusive_resources,omitempty"`

	// PrincipleRefs are principle IDs the policy explicitly declares
	// itself to satisfy.
	PrincipleRefs []string `json:"principle_refs,omitempty"`

	// SpecVersion is the policy document format version (semver).
	SpecVersion string `json:"spec_version,omitempty"`
}
