//go:build property
// +build property

package compliance

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/concord-labs/concord/pkg/contracts"
	"github.com/concord-labs/concord/pkg/registry"
)

// TestScoreBounds verifies the aggregate score stays in [0,1] for
// arbitrary principle sets and policy contents.
func TestScoreBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	categories := []contracts.PrincipleCategory{
		contracts.CategoryFairness,
		contracts.CategoryTransparency,
		contracts.CategoryPrivacy,
		contracts.CategorySafety,
		contracts.CategoryAccountability,
	}

	properties.Property("aggregate score is within [0,1]", prop.ForAll(
		func(ids []string, weights []float64, content string) bool {
			var principles []contracts.Principle
			seen := map[string]bool{}
			for i := 0; i < len(ids) && i < len(weights); i++ {
				if ids[i] == "" || seen[ids[i]] {
					continue
				}
				seen[ids[i]] = true
				principles = append(principles, contracts.Principle{
					ID:              ids[i],
					Category:        categories[i%len(categories)],
					Weight:          weights[i],
					KeywordEvidence: []string{ids[i]},
				})
			}

			reg, err := registry.New(principles)
			if err != nil {
				return true // invalid sets are rejected up front
			}

			report, err := NewScorer().Score(context.Background(),
				contracts.Policy{ID: "pol", Risk: contracts.RiskLow, Content: content}, reg)
			if err != nil {
				return false
			}
			return report.AggregateScore >= 0 && report.AggregateScore <= 1
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.Float64Range(0.01, 1.0)),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestMandatoryDominance verifies that an unsatisfied mandatory
// principle always forces denial, whatever the rest of the set scores.
func TestMandatoryDominance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("unmet mandatory principle forces allowed=false", prop.ForAll(
		func(weight float64, satisfiedCount int) bool {
			principles := []contracts.Principle{{
				ID:              "mandatory-unmatchable",
				Category:        contracts.CategorySafety,
				Weight:          weight,
				Mandatory:       true,
				KeywordEvidence: []string{"\x00never-in-content"},
			}}
			content := ""
			for i := 0; i < satisfiedCount%8; i++ {
				id := string(rune('a' + i))
				principles = append(principles, contracts.Principle{
					ID:              "sat-" + id,
					Category:        contracts.CategoryTransparency,
					Weight:          1.0,
					KeywordEvidence: []string{"term-" + id},
				})
				content += " term-" + id
			}

			reg, err := registry.New(principles)
			if err != nil {
				return false
			}
			report, err := NewScorer().Score(context.Background(),
				contracts.Policy{ID: "pol", Risk: contracts.RiskLow, Content: content}, reg)
			if err != nil {
				return false
			}
			return !report.Allowed
		},
		gen.Float64Range(0.01, 1.0),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}
