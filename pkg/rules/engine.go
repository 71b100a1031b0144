// Package rules adapts the external declarative rule-evaluation runtime
// (CEL) for compliance sub-rules. The engine compiles rule sources once
// and evaluates them as pure boolean functions over policy attributes.
//
// Evaluation is fail-closed: any compilation gap, evaluation error, or
// non-boolean result counts as "not satisfied".
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/concord-labs/concord/pkg/contracts"
)

// Engine compiles and evaluates declarative compliance rules.
type Engine struct {
	mu          sync.RWMutex
	env         *cel.Env
	ruleSet     map[string]cel.Program
	definitions map[string]string // rule ID -> CEL source
}

// NewEngine initializes the CEL environment with the standard policy
// attributes available to every rule.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("action", types.StringType),
			decls.NewVariable("subject", types.StringType),
			decls.NewVariable("resource", types.StringType),
			decls.NewVariable("content", types.StringType),
			decls.NewVariable("tier", types.StringType),
			decls.NewVariable("risk", types.StringType),
			decls.NewVariable("scope", types.NewMapType(types.StringType, types.StringType)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("rules: create CEL env: %w", err)
	}

	return &Engine{
		env:         env,
		ruleSet:     make(map[string]cel.Program),
		definitions: make(map[string]string),
	}, nil
}

// LoadRule compiles and registers one rule under the given ID.
func (e *Engine) LoadRule(ruleID, source string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ast, issues := e.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("rules: compile %q: %w", ruleID, issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("rules: program %q: %w", ruleID, err)
	}

	e.ruleSet[ruleID] = prg
	e.definitions[ruleID] = source
	return nil
}

// Has reports whether a rule is registered under the given ID.
func (e *Engine) Has(ruleID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.ruleSet[ruleID]
	return ok
}

// Definitions returns a copy of all loaded rule sources (ID → source).
func (e *Engine) Definitions() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.definitions))
	for k, v := range e.definitions {
		out[k] = v
	}
	return out
}

// Evaluate runs one rule against a policy. A missing rule, evaluation
// error, or non-boolean result yields false.
func (e *Engine) Evaluate(ctx context.Context, ruleID string, p contracts.Policy) bool {
	e.mu.RLock()
	prg, ok := e.ruleSet[ruleID]
	e.mu.RUnlock()
	if !ok {
		return false
	}

	select {
	case <-ctx.Done():
		return false // fail closed on cancellation
	default:
	}

	input := map[string]interface{}{
		"action":   string(p.Action),
		"subject":  p.Subject,
		"resource": p.Resource,
		"content":  p.Content,
		"tier":     string(p.Tier),
		"risk":     string(p.Risk),
		"scope": map[string]string{
			"domain":  p.Scope.Domain,
			"context": p.Scope.Context,
		},
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		return false
	}
	satisfied, ok := out.Value().(bool)
	return ok && satisfied
}
