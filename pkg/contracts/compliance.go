package contracts

// ViolationKind names a denylist category hit in policy content.
type ViolationKind string

const (
	ViolationHumanDignity   ViolationKind = "human_dignity"
	ViolationFairness       ViolationKind = "fairness"
	ViolationPrivacy        ViolationKind = "privacy"
	ViolationDiscrimination ViolationKind = "discrimination"
)

// ComplianceReport is the immutable result of scoring one policy against
// a principle snapshot. Produced once per evaluation.
type ComplianceReport struct {
	PolicyID        string             `json:"policy_id"`
	AggregateScore  float64            `json:"aggregate_score"` // always in [0,1]
	PerPrinciple    map[string]float64 `json:"per_principle"`
	Violations      []ViolationKind    `json:"violations,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	MandatoryUnmet  []string           `json:"mandatory_unmet,omitempty"` // principle IDs
	Threshold       float64            `json:"threshold"`
	Allowed         bool               `json:"allowed"`
}
