// Package workers runs batch policy evaluations on a bounded pool.
package workers

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/concord-labs/concord/pkg/compliance"
	"github.com/concord-labs/concord/pkg/conflict"
	"github.com/concord-labs/concord/pkg/contracts"
	"github.com/concord-labs/concord/pkg/registry"
)

// DefaultConcurrency bounds how many policies are evaluated at once.
const DefaultConcurrency = 8

// Evaluation is one policy's batch result: its compliance report and
// its conflicts against the active set.
type Evaluation struct {
	PolicyID   string                      `json:"policy_id"`
	Compliance *contracts.ComplianceReport `json:"compliance"`
	Conflicts  []contracts.ConflictReport  `json:"conflicts,omitempty"`
}

// Pool evaluates batches of candidate policies concurrently.
type Pool struct {
	scorer      *compliance.Scorer
	concurrency int
}

// NewPool creates a pool around a scorer.
func NewPool(scorer *compliance.Scorer) *Pool {
	return &Pool{scorer: scorer, concurrency: DefaultConcurrency}
}

// WithConcurrency bounds the number of in-flight evaluations.
func (p *Pool) WithConcurrency(n int) *Pool {
	if n > 0 {
		p.concurrency = n
	}
	return p
}

// EvaluateBatch scores every candidate and detects its conflicts
// against the active set. Results keep the input order. The first
// scoring error cancels the batch.
func (p *Pool) EvaluateBatch(ctx context.Context, candidates []contracts.Policy, reg *registry.Registry, active []contracts.Policy, strategy contracts.ResolutionStrategy) ([]Evaluation, error) {
	results := make([]Evaluation, len(candidates))
	detector := conflict.NewDetector(strategy, reg)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			report, err := p.scorer.Score(ctx, candidate, reg)
			if err != nil {
				return err
			}
			results[i] = Evaluation{
				PolicyID:   candidate.ID,
				Compliance: report,
				Conflicts:  detector.Detect(candidate, active),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
