package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/concord-labs/concord/pkg/contracts"
)

// SolverStatus is the verdict of the external formal-verification
// solver.
type SolverStatus string

const (
	StatusSat     SolverStatus = "sat"     // counterexample found
	StatusUnsat   SolverStatus = "unsat"   // no counterexample, properties hold
	StatusUnknown SolverStatus = "unknown" // solver could not decide
)

// SolverResult is the solver's answer for one assertion set.
type SolverResult struct {
	Status         SolverStatus `json:"status"`
	Counterexample string       `json:"counterexample,omitempty"`
}

// Solver is the abstract contract of the external formal-verification
// solver. The solver's internal algorithm is out of scope; the engine
// only depends on this call shape.
type Solver interface {
	Verify(ctx context.Context, assertions []string, timeout time.Duration) (*SolverResult, error)
}

// buildAssertions translates the policy content and the negated safety
// properties into the solver's assertion list. The solver searches for
// a model violating any property; unsat means the properties hold.
func buildAssertions(policy contracts.Policy, props []contracts.SafetyProperty) []string {
	assertions := make([]string, 0, len(props)+1)
	assertions = append(assertions, "(policy "+strconv.Quote(policy.Content)+")")
	for _, p := range props {
		assertions = append(assertions, fmt.Sprintf("(assert (not %s))", p.FormalSpec))
	}
	return assertions
}

// HTTPSolver talks to a solver service over HTTP.
type HTTPSolver struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSolver creates a solver client for the given endpoint.
func NewHTTPSolver(endpoint string) *HTTPSolver {
	return &HTTPSolver{endpoint: endpoint, client: &http.Client{}}
}

type solverRequest struct {
	Assertions     []string `json:"assertions"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// Verify implements Solver. A transport failure maps to
// ErrSolverUnavailable and an elapsed deadline to ErrSolverTimeout;
// both are handled fail-closed by the orchestrator.
func (s *HTTPSolver) Verify(ctx context.Context, assertions []string, timeout time.Duration) (*SolverResult, error) {
	body, err := json.Marshal(solverRequest{
		Assertions:     assertions,
		TimeoutSeconds: int(timeout.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("solver: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("solver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, contracts.ErrSolverTimeout
		}
		return nil, fmt.Errorf("%w: %v", contracts.ErrSolverUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", contracts.ErrSolverUnavailable, resp.StatusCode)
	}

	var result SolverResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", contracts.ErrSolverUnavailable, err)
	}
	return &result, nil
}

// UnavailableSolver is the fail-closed default when no solver is
// configured: every rigorous verification escalates instead of passing.
type UnavailableSolver struct{}

func (UnavailableSolver) Verify(context.Context, []string, time.Duration) (*SolverResult, error) {
	return nil, contracts.ErrSolverUnavailable
}
