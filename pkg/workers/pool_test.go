package workers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-labs/concord/pkg/compliance"
	"github.com/concord-labs/concord/pkg/contracts"
	"github.com/concord-labs/concord/pkg/registry"
)

func batchRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]contracts.Principle{
		{ID: "p-safety", Category: contracts.CategorySafety, Weight: 0.9, Mandatory: true, KeywordEvidence: []string{"failsafe"}},
	})
	require.NoError(t, err)
	return reg
}

func TestEvaluateBatch_KeepsInputOrder(t *testing.T) {
	pool := NewPool(compliance.NewScorer()).WithConcurrency(4)
	reg := batchRegistry(t)

	candidates := make([]contracts.Policy, 20)
	for i := range candidates {
		candidates[i] = contracts.Policy{
			ID:      fmt.Sprintf("pol-%02d", i),
			Risk:    contracts.RiskLow,
			Action:  contracts.ActionAllow,
			Content: "failsafe rollback on every path",
		}
	}

	results, err := pool.EvaluateBatch(context.Background(), candidates, reg, nil, contracts.ResolvePriorityBased)
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("pol-%02d", i), res.PolicyID)
		require.NotNil(t, res.Compliance)
		assert.True(t, res.Compliance.Allowed)
	}
}

func TestEvaluateBatch_DetectsConflictsPerCandidate(t *testing.T) {
	pool := NewPool(compliance.NewScorer())
	reg := batchRegistry(t)

	active := []contracts.Policy{{
		ID: "pol-active", Subject: "clinician", Resource: "record",
		Action: contracts.ActionDeny,
	}}
	candidates := []contracts.Policy{
		{ID: "pol-clash", Subject: "clinician", Resource: "record", Action: contracts.ActionAllow,
			Risk: contracts.RiskLow, Content: "failsafe", Priority: 5},
		{ID: "pol-clean", Subject: "auditor", Resource: "ledger", Action: contracts.ActionAllow,
			Risk: contracts.RiskLow, Content: "failsafe"},
	}

	results, err := pool.EvaluateBatch(context.Background(), candidates, reg, active, contracts.ResolvePriorityBased)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotEmpty(t, results[0].Conflicts)
	assert.Empty(t, results[1].Conflicts)
}

func TestEvaluateBatch_FirstErrorCancels(t *testing.T) {
	pool := NewPool(compliance.NewScorer()).WithConcurrency(2)
	reg := batchRegistry(t)

	candidates := []contracts.Policy{
		{ID: "pol-ok", Risk: contracts.RiskLow, Action: contracts.ActionAllow, Content: "failsafe"},
		{Risk: contracts.RiskLow, Action: contracts.ActionAllow, Content: "failsafe"}, // missing ID
	}

	_, err := pool.EvaluateBatch(context.Background(), candidates, reg, nil, contracts.ResolvePriorityBased)
	require.Error(t, err)
	assert.True(t, contracts.IsValidation(err))
}
