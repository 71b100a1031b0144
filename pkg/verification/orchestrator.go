// Package verification drives a candidate policy through the tiered
// verification pipeline: automated review, human-in-the-loop review,
// and rigorous formal proof. The pipeline is an explicit state machine
// with an exhaustive transition table and an append-only audit trail.
//
// Invariants:
//   - tiers only move forward, never backward
//   - terminal states (Verified, Failed, Escalated) are immutable
//   - at most one active request exists per fingerprint
//   - every uncertain outcome fails closed, never Verified
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/concord-labs/concord/pkg/contracts"
)

// Config holds the escalation thresholds and deadlines.
type Config struct {
	// Confidence thresholds; must satisfy
	// TLowEscalate < TAuto < THitl < TRigorous.
	TLowEscalate float64 `yaml:"t_low_escalate"`
	TAuto        float64 `yaml:"t_auto"`
	THitl        float64 `yaml:"t_hitl"`
	TRigorous    float64 `yaml:"t_rigorous"`

	ReviewDeadline time.Duration `yaml:"review_deadline"`
	SolverTimeout  time.Duration `yaml:"solver_timeout"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TLowEscalate:   0.50,
		TAuto:          0.70,
		THitl:          0.80,
		TRigorous:      0.95,
		ReviewDeadline: 48 * time.Hour,
		SolverTimeout:  300 * time.Second,
	}
}

// Validate checks the threshold ordering invariant. A violation is a
// fatal ConfigurationError: the engine must not serve with it.
func (c Config) Validate() error {
	if !(c.TLowEscalate < c.TAuto && c.TAuto < c.THitl && c.THitl < c.TRigorous) {
		return &contracts.ConfigurationError{
			Detail: fmt.Sprintf("threshold ordering violated: need t_low_escalate(%v) < t_auto(%v) < t_hitl(%v) < t_rigorous(%v)",
				c.TLowEscalate, c.TAuto, c.THitl, c.TRigorous),
		}
	}
	if c.ReviewDeadline <= 0 {
		return &contracts.ConfigurationError{Detail: "review_deadline must be positive"}
	}
	if c.SolverTimeout <= 0 {
		return &contracts.ConfigurationError{Detail: "solver_timeout must be positive"}
	}
	return nil
}

// validTransitions is the exhaustive transition table. Anything not
// listed is rejected; terminal states have no outgoing edges.
var validTransitions = map[contracts.VerificationState]map[contracts.VerificationState]bool{
	contracts.StatePending: {
		contracts.StateAutomatedReview: true,
		contracts.StateEscalated:       true, // cancellation
	},
	contracts.StateAutomatedReview: {
		contracts.StateVerified:    true,
		contracts.StateHumanReview: true,
		contracts.StateFailed:      true,
		contracts.StateEscalated:   true,
	},
	contracts.StateHumanReview: {
		contracts.StateVerified:             true,
		contracts.StateRigorousVerification: true,
		contracts.StateEscalated:            true,
		contracts.StateFailed:               true, // explicit reviewer rejection
	},
	contracts.StateRigorousVerification: {
		contracts.StateVerified:  true,
		contracts.StateFailed:    true,
		contracts.StateEscalated: true,
	},
}

// TrailSink receives the audit trail of a completed verification for
// durable append-only storage.
type TrailSink interface {
	AppendTrail(ctx context.Context, fingerprint string, trail []contracts.Transition) error
}

// Request is the handle for one verification state machine. Transitions
// for a given request are strictly sequential under its mutex.
type Request struct {
	fingerprint string
	policy      contracts.Policy
	props       []contracts.SafetyProperty

	mu           sync.Mutex
	state        contracts.VerificationState
	tier         contracts.VerificationTier
	confidence   float64
	failureCause string
	trail        []contracts.Transition

	done   chan struct{}
	cancel context.CancelFunc
}

// Fingerprint returns the request's verification-unit hash.
func (r *Request) Fingerprint() string { return r.fingerprint }

// Done is closed when the request reaches a terminal state.
func (r *Request) Done() <-chan struct{} { return r.done }

// Result snapshots the request. The trail copy keeps the internal
// append-only list out of caller hands.
func (r *Request) Result() contracts.VerificationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	trail := make([]contracts.Transition, len(r.trail))
	copy(trail, r.trail)
	return contracts.VerificationResult{
		Fingerprint:  r.fingerprint,
		State:        r.state,
		Tier:         r.tier,
		Confidence:   r.confidence,
		FailureCause: r.failureCause,
		Trail:        trail,
	}
}

// Await blocks until the request is terminal or the context ends. On
// context expiry the current (non-terminal) snapshot is returned with
// the context error.
func (r *Request) Await(ctx context.Context) (contracts.VerificationResult, error) {
	select {
	case <-r.done:
		return r.Result(), nil
	case <-ctx.Done():
		return r.Result(), ctx.Err()
	}
}

// Orchestrator runs verification state machines. The fingerprint map is
// the only cross-request shared state and is accessed exclusively
// through atomic insert/remove operations.
type Orchestrator struct {
	cfg      Config
	solver   Solver
	reviewer Reviewer
	sink     TrailSink
	logger   *slog.Logger
	clock    func() time.Time

	active sync.Map // fingerprint → *Request
}

// NewOrchestrator validates the configuration and builds an
// orchestrator. A nil solver defaults to the fail-closed
// UnavailableSolver.
func NewOrchestrator(cfg Config, solver Solver, reviewer Reviewer) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if solver == nil {
		solver = UnavailableSolver{}
	}
	return &Orchestrator{
		cfg:      cfg,
		solver:   solver,
		reviewer: reviewer,
		logger:   slog.Default(),
		clock:    time.Now,
	}, nil
}

// WithClock overrides the clock for deterministic testing.
func (o *Orchestrator) WithClock(clock func() time.Time) *Orchestrator {
	o.clock = clock
	return o
}

// WithTrailSink attaches durable audit-trail storage.
func (o *Orchestrator) WithTrailSink(sink TrailSink) *Orchestrator {
	o.sink = sink
	return o
}

// WithLogger overrides the logger.
func (o *Orchestrator) WithLogger(l *slog.Logger) *Orchestrator {
	o.logger = l
	return o
}

// Submit starts (or joins) verification for a policy. Concurrent
// submissions of the same (content, properties) unit return the one
// existing handle: one state machine, one audit trail. The returned
// bool is true when this call created the machine.
func (o *Orchestrator) Submit(ctx context.Context, policy contracts.Policy, props []contracts.SafetyProperty, confidence float64) (*Request, bool, error) {
	fp, err := Fingerprint(policy.Content, props)
	if err != nil {
		return nil, false, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req := &Request{
		fingerprint: fp,
		policy:      policy,
		props:       props,
		state:       contracts.StatePending,
		tier:        contracts.TierAutomated,
		confidence:  0,
		done:        make(chan struct{}),
		cancel:      cancel,
	}

	if existing, loaded := o.active.LoadOrStore(fp, req); loaded {
		cancel()
		return existing.(*Request), false, nil
	}

	go o.run(runCtx, req, confidence)
	return req, true, nil
}

// Get returns the active request for a fingerprint, if any.
func (o *Orchestrator) Get(fingerprint string) (*Request, bool) {
	v, ok := o.active.Load(fingerprint)
	if !ok {
		return nil, false
	}
	return v.(*Request), true
}

// Cancel cancels an active request. The machine transitions to
// Escalated with rationale "cancelled", never silently Failed or
// Verified. A rigorous verification in flight has its solver call
// terminated.
func (o *Orchestrator) Cancel(fingerprint string) error {
	v, ok := o.active.Load(fingerprint)
	if !ok {
		return fmt.Errorf("verification: no active request for %s", fingerprint)
	}
	v.(*Request).cancel()
	return nil
}

// run drives one machine to a terminal state.
func (o *Orchestrator) run(ctx context.Context, req *Request, confidence float64) {
	defer func() {
		o.active.Delete(req.fingerprint)
		if o.sink != nil {
			result := req.Result()
			if err := o.sink.AppendTrail(context.WithoutCancel(ctx), req.fingerprint, result.Trail); err != nil {
				o.logger.Error("verification: persist audit trail", "fingerprint", req.fingerprint, "error", err)
			}
		}
	}()

	o.transition(req, contracts.StateAutomatedReview, "system", "submitted for automated review", confidence)

	next := o.automatedStep(ctx, req)
	if next == contracts.StateHumanReview {
		next = o.humanStep(ctx, req)
	}
	if next == contracts.StateRigorousVerification {
		o.rigorousStep(ctx, req)
	}
}

// automatedStep applies the confidence bands of the automated tier and
// returns the state it moved to.
func (o *Orchestrator) automatedStep(ctx context.Context, req *Request) contracts.VerificationState {
	if ctx.Err() != nil {
		o.escalateCancelled(req)
		return contracts.StateEscalated
	}

	confidence := req.snapshotConfidence()
	critical := hasCritical(req.props)

	switch {
	case confidence < o.cfg.TLowEscalate:
		o.fail(req, "system", fmt.Sprintf("automated check found a hard contradiction (confidence %.2f < %.2f)", confidence, o.cfg.TLowEscalate))
		return contracts.StateFailed
	case critical:
		o.transition(req, contracts.StateHumanReview, "system", "critical safety property requires human review", 0)
		return contracts.StateHumanReview
	case confidence >= o.cfg.TAuto:
		o.transition(req, contracts.StateVerified, "system", fmt.Sprintf("automated confidence %.2f meets threshold %.2f", confidence, o.cfg.TAuto), 0)
		return contracts.StateVerified
	default:
		o.transition(req, contracts.StateHumanReview, "system", fmt.Sprintf("confidence %.2f in escalation band [%.2f, %.2f)", confidence, o.cfg.TLowEscalate, o.cfg.TAuto), 0)
		return contracts.StateHumanReview
	}
}

// ticketAbandoner is optionally implemented by a Reviewer. When the
// orchestrator moves on without a decision it drops the ticket, so a
// late Resolve reports not-found instead of silently succeeding.
type ticketAbandoner interface {
	Abandon(ticketID string)
}

// humanStep submits a review ticket and waits for the decision, the
// review deadline, or cancellation. A ticket outrun by the deadline or
// by cancellation is abandoned; its decision can no longer be applied.
func (o *Orchestrator) humanStep(ctx context.Context, req *Request) contracts.VerificationState {
	req.mu.Lock()
	req.tier = contracts.TierHumanInLoop
	req.mu.Unlock()

	now := o.clock()
	ticket := ReviewTicket{
		TicketID:    uuid.New().String(),
		Fingerprint: req.fingerprint,
		PolicyID:    req.policy.ID,
		Properties:  req.props,
		SubmittedAt: now,
		ExpiresAt:   now.Add(o.cfg.ReviewDeadline),
	}

	decisions, err := o.reviewer.Submit(ctx, ticket)
	if err != nil {
		o.transition(req, contracts.StateEscalated, "system", "human-review collaborator unavailable: "+err.Error(), 0)
		return contracts.StateEscalated
	}

	abandon := func() {
		if q, ok := o.reviewer.(ticketAbandoner); ok {
			q.Abandon(ticket.TicketID)
		}
	}

	deadline := time.NewTimer(o.cfg.ReviewDeadline)
	defer deadline.Stop()

	select {
	case <-ctx.Done():
		abandon()
		o.escalateCancelled(req)
		return contracts.StateEscalated
	case <-deadline.C:
		abandon()
		o.transition(req, contracts.StateEscalated, "system", "review deadline elapsed with no decision", 0)
		return contracts.StateEscalated
	case decision := <-decisions:
		return o.applyReview(req, decision)
	}
}

func (o *Orchestrator) applyReview(req *Request, decision ReviewDecision) contracts.VerificationState {
	actor := "reviewer"
	if decision.ReviewerID != "" {
		actor = "reviewer:" + decision.ReviewerID
	}

	switch decision.Outcome {
	case OutcomeReject:
		req.mu.Lock()
		req.failureCause = "reviewer rejected: " + decision.Rationale
		req.mu.Unlock()
		o.transition(req, contracts.StateFailed, actor, "reviewer rejected: "+decision.Rationale, decision.ConfidenceAdjustment)
		return contracts.StateFailed

	case OutcomeEscalate:
		o.transition(req, contracts.StateRigorousVerification, actor, "reviewer requested formal proof", decision.ConfidenceAdjustment)
		return contracts.StateRigorousVerification

	default: // approve
		combined := req.snapshotConfidence() + decision.ConfidenceAdjustment
		switch {
		case decision.RequireProof || hasCritical(req.props):
			o.transition(req, contracts.StateRigorousVerification, actor, "approval requires formal proof", decision.ConfidenceAdjustment)
			return contracts.StateRigorousVerification
		case combined >= o.cfg.THitl:
			o.transition(req, contracts.StateVerified, actor, fmt.Sprintf("reviewer confirmed; combined confidence %.2f meets threshold %.2f", combined, o.cfg.THitl), decision.ConfidenceAdjustment)
			return contracts.StateVerified
		default:
			o.transition(req, contracts.StateRigorousVerification, actor, fmt.Sprintf("combined confidence %.2f below threshold %.2f; formal proof required", combined, o.cfg.THitl), decision.ConfidenceAdjustment)
			return contracts.StateRigorousVerification
		}
	}
}

// rigorousStep runs the external solver over the negated safety
// properties. Uncertainty on a critical property fails closed.
func (o *Orchestrator) rigorousStep(ctx context.Context, req *Request) {
	req.mu.Lock()
	req.tier = contracts.TierRigorous
	req.mu.Unlock()

	critical := hasCritical(req.props)
	assertions := buildAssertions(req.policy, req.props)

	result, err := o.solver.Verify(ctx, assertions, o.cfg.SolverTimeout)

	if ctx.Err() != nil {
		// Caller terminated the solver call.
		o.escalateCancelled(req)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, contracts.ErrSolverTimeout) && critical:
			o.fail(req, "solver", "solver timed out with a critical safety property present (fail-closed)")
		case errors.Is(err, contracts.ErrSolverTimeout):
			o.transition(req, contracts.StateEscalated, "solver", "solver timed out; no critical property involved", 0)
		default:
			o.transition(req, contracts.StateEscalated, "system", "solver unavailable: "+err.Error(), 0)
		}
		return
	}

	switch result.Status {
	case StatusUnsat:
		delta := o.cfg.TRigorous - req.snapshotConfidence()
		o.transition(req, contracts.StateVerified, "solver", "no counterexample to the negated safety properties", delta)
	case StatusSat:
		cause := "counterexample found"
		if result.Counterexample != "" {
			cause = "counterexample found: " + result.Counterexample
		}
		o.fail(req, "solver", cause)
	default: // unknown
		if critical {
			o.fail(req, "solver", "solver returned unknown with a critical safety property present (fail-closed)")
		} else {
			o.transition(req, contracts.StateEscalated, "solver", "solver returned unknown; no critical property involved", 0)
		}
	}
}

func (o *Orchestrator) fail(req *Request, actor, cause string) {
	req.mu.Lock()
	req.failureCause = cause
	req.mu.Unlock()
	o.transition(req, contracts.StateFailed, actor, cause, 0)
}

func (o *Orchestrator) escalateCancelled(req *Request) {
	o.transition(req, contracts.StateEscalated, "caller", "cancelled", 0)
}

// transition appends one immutable audit record and moves the machine.
// Invalid edges and writes to a terminal state are rejected; the trail
// is never rewritten.
func (o *Orchestrator) transition(req *Request, to contracts.VerificationState, actor, rationale string, delta float64) {
	req.mu.Lock()
	defer req.mu.Unlock()

	from := req.state
	if from.Terminal() {
		o.logger.Warn("verification: transition after terminal state ignored",
			"fingerprint", req.fingerprint, "from", from, "to", to)
		return
	}
	if !validTransitions[from][to] {
		o.logger.Error("verification: invalid transition rejected",
			"fingerprint", req.fingerprint, "from", from, "to", to)
		return
	}

	req.trail = append(req.trail, contracts.Transition{
		Timestamp:       o.clock(),
		Actor:           actor,
		From:            from,
		To:              to,
		Rationale:       rationale,
		ConfidenceDelta: delta,
	})
	req.state = to
	req.confidence += delta

	if to.Terminal() {
		close(req.done)
	}
}

func (r *Request) snapshotConfidence() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.confidence
}

func hasCritical(props []contracts.SafetyProperty) bool {
	for _, p := range props {
		if p.Criticality == contracts.CriticalityCritical {
			return true
		}
	}
	return false
}
