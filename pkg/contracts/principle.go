// Package contracts defines the shared data contracts of the Concord
// governance engine: principles, policies, compliance reports, conflict
// reports, verification requests, and admission decisions.
//
// All contract types are plain data. They carry no behavior beyond
// classification helpers and are safe to marshal as JSON.
package contracts

// PrincipleCategory classifies a governing principle.
type PrincipleCategory string

const (
	CategoryFairness       PrincipleCategory = "fairness"
	CategoryTransparency   PrincipleCategory = "transparency"
	CategoryPrivacy        PrincipleCategory = "privacy"
	CategorySafety         PrincipleCategory = "safety"
	CategoryAccountability PrincipleCategory = "accountability"
	CategoryHumanDignity   PrincipleCategory = "human_dignity"
	CategoryAutonomy       PrincipleCategory = "autonomy"
)

// KnownCategories is the closed set of accepted principle categories.
// Principles declaring anything else are rejected at registry load.
var KnownCategories = map[PrincipleCategory]bool{
	CategoryFairness:       true,
	CategoryTransparency:   true,
	CategoryPrivacy:        true,
	CategorySafety:         true,
	CategoryAccountability: true,
	CategoryHumanDignity:   true,
	CategoryAutonomy:       true,
}

// Principle is one weighted governance requirement. Principles are loaded
// once per evaluation as an immutable snapshot and never mutated by the
// engine.
type Principle struct {
	ID              string            `json:"id"`
	Category        PrincipleCategory `json:"category"`
	Weight          float64           `json:"weight"` // must be in (0,1]
	Mandatory       bool              `json:"mandatory"`
	KeywordEvidence []string          `json:"keyword_evidence,omitempty"`
	Description     string            `json:"description,omitempty"`
}
