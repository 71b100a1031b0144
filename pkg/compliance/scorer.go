// Package compliance scores a candidate policy against a principle
// snapshot. Scoring is a pure function of its inputs: no side effects,
// no shared state, safe to run in parallel per policy.
package compliance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/concord-labs/concord/pkg/contracts"
	"github.com/concord-labs/concord/pkg/registry"
	"github.com/concord-labs/concord/pkg/rules"
)

// partialCredit is the fraction of weight granted to an unsatisfied
// non-mandatory principle. Unsatisfied mandatory principles contribute
// zero and force denial.
const partialCredit = 0.5

// DefaultThresholds maps declared risk level to the minimum aggregate
// score the policy must reach.
var DefaultThresholds = map[contracts.RiskLevel]float64{
	contracts.RiskLow:      0.65,
	contracts.RiskMedium:   0.75,
	contracts.RiskHigh:     0.85,
	contracts.RiskCritical: 0.95,
}

// Scorer computes compliance reports.
type Scorer struct {
	thresholds map[contracts.RiskLevel]float64
	rules      *rules.Engine
}

// NewScorer creates a scorer with the default risk thresholds.
func NewScorer() *Scorer {
	return &Scorer{thresholds: DefaultThresholds}
}

// WithThresholds overrides the risk-level minimums (from a governance
// profile).
func (s *Scorer) WithThresholds(t map[contracts.RiskLevel]float64) *Scorer {
	if len(t) > 0 {
		s.thresholds = t
	}
	return s
}

// WithRuleEngine attaches a declarative rule engine. When a rule is
// registered under a principle's ID, that rule decides satisfaction
// instead of lexical evidence matching.
func (s *Scorer) WithRuleEngine(e *rules.Engine) *Scorer {
	s.rules = e
	return s
}

// Score evaluates one policy against the principle snapshot.
func (s *Scorer) Score(ctx context.Context, p contracts.Policy, reg *registry.Registry) (*contracts.ComplianceReport, error) {
	if p.ID == "" {
		return nil, &contracts.ValidationError{Field: "policy.id", Detail: "must not be empty"}
	}

	content := normalize(p.Content)
	declared := make(map[string]bool, len(p.PrincipleRefs))
	for _, ref := range p.PrincipleRefs {
		declared[ref] = true
	}

	report := &contracts.ComplianceReport{
		PolicyID:     p.ID,
		PerPrinciple: make(map[string]float64, reg.Len()),
		Threshold:    s.threshold(p.Risk),
	}

	var totalWeight, sum float64
	var unsatisfied []contracts.Principle
	for _, principle := range reg.Principles() {
		totalWeight += principle.Weight

		contribution := 0.0
		switch {
		case s.satisfied(ctx, p, principle, content, declared):
			contribution = principle.Weight
		case principle.Mandatory:
			report.MandatoryUnmet = append(report.MandatoryUnmet, principle.ID)
			unsatisfied = append(unsatisfied, principle)
		default:
			contribution = principle.Weight * partialCredit
			unsatisfied = append(unsatisfied, principle)
		}
		report.PerPrinciple[principle.ID] = contribution
		sum += contribution
	}
	if totalWeight > 0 {
		report.AggregateScore = sum / totalWeight
	}

	report.Violations = scanDenylist(content)
	report.Recommendations = recommend(unsatisfied)

	report.Allowed = report.AggregateScore >= report.Threshold &&
		len(report.MandatoryUnmet) == 0 &&
		len(report.Violations) == 0
	return report, nil
}

// satisfied decides whether the policy meets one principle: an explicit
// declared reference, a keyword evidence hit in the content, or, when a
// declarative rule exists for the principle, the rule's verdict.
func (s *Scorer) satisfied(ctx context.Context, p contracts.Policy, principle contracts.Principle, content string, declared map[string]bool) bool {
	if s.rules != nil && s.rules.Has(principle.ID) {
		return s.rules.Evaluate(ctx, principle.ID, p)
	}
	if declared[principle.ID] {
		return true
	}
	for _, term := range principle.KeywordEvidence {
		if term != "" && strings.Contains(content, normalize(term)) {
			return true
		}
	}
	return false
}

func (s *Scorer) threshold(risk contracts.RiskLevel) float64 {
	if t, ok := s.thresholds[risk]; ok {
		return t
	}
	// Unknown or missing risk level is treated as critical.
	return s.thresholds[contracts.RiskCritical]
}

// recommend emits one line per unsatisfied principle, ordered by
// descending weight then principle ID so output is stable.
func recommend(unsatisfied []contracts.Principle) []string {
	sort.Slice(unsatisfied, func(i, j int) bool {
		if unsatisfied[i].Weight != unsatisfied[j].Weight {
			return unsatisfied[i].Weight > unsatisfied[j].Weight
		}
		return unsatisfied[i].ID < unsatisfied[j].ID
	})

	recs := make([]string, 0, len(unsatisfied))
	for _, p := range unsatisfied {
		recs = append(recs, fmt.Sprintf(
			"policy does not address principle %q (%s, weight %.2f); add an explicit reference or supporting language",
			p.ID, p.Category, p.Weight))
	}
	return recs
}

// normalize folds content to NFC and lower case so evidence and
// denylist matching cannot be defeated by equivalent Unicode sequences
// or casing.
func normalize(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}
