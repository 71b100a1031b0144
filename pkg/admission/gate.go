package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/concord-labs/concord/pkg/audit"
	"github.com/concord-labs/concord/pkg/compliance"
	"github.com/concord-labs/concord/pkg/conflict"
	"github.com/concord-labs/concord/pkg/contracts"
	"github.com/concord-labs/concord/pkg/registry"
	"github.com/concord-labs/concord/pkg/verification"
)

// DefaultDecisionWait bounds how long one admission call waits for the
// verification pipeline before reporting a pending or timed-out
// decision.
const DefaultDecisionWait = 30 * time.Second

// Request carries everything one admission evaluation needs: the
// candidate, the principle and active-policy snapshots, the safety
// properties, and the conflict resolution strategy.
type Request struct {
	Candidate        contracts.Policy             `json:"candidate"`
	Principles       []contracts.Principle        `json:"principles"`
	ActivePolicies   []contracts.Policy           `json:"active_policies,omitempty"`
	SafetyProperties []contracts.SafetyProperty   `json:"safety_properties,omitempty"`
	Strategy         contracts.ResolutionStrategy `json:"resolution_strategy,omitempty"`
}

// Recorder receives admission outcomes for metrics.
type Recorder interface {
	RecordAdmission(ctx context.Context, outcome contracts.AdmissionOutcome)
}

// DurationRecorder is optionally implemented by a Recorder to receive
// the end-to-end duration of completed verification runs.
type DurationRecorder interface {
	RecordVerificationDuration(ctx context.Context, tier contracts.VerificationTier, d time.Duration)
}

// Gate is the single admission decision point. A policy is admitted
// only if it is compliant, free of unresolved critical conflicts, and
// reaches the Verified terminal state.
type Gate struct {
	scorer  *compliance.Scorer
	orch    *verification.Orchestrator
	denials *DenialLedger
	auditor audit.Logger
	metrics Recorder
	logger  *slog.Logger
	wait    time.Duration
	clock   func() time.Time
}

// NewGate builds a gate around a scorer and an orchestrator.
func NewGate(scorer *compliance.Scorer, orch *verification.Orchestrator) *Gate {
	return &Gate{
		scorer:  scorer,
		orch:    orch,
		denials: NewDenialLedger(),
		logger:  slog.Default(),
		wait:    DefaultDecisionWait,
		clock:   time.Now,
	}
}

// WithAuditor attaches an audit logger.
func (g *Gate) WithAuditor(a audit.Logger) *Gate {
	g.auditor = a
	return g
}

// WithMetrics attaches an outcome recorder.
func (g *Gate) WithMetrics(m Recorder) *Gate {
	g.metrics = m
	return g
}

// WithDecisionWait bounds the synchronous verification wait.
func (g *Gate) WithDecisionWait(d time.Duration) *Gate {
	if d > 0 {
		g.wait = d
	}
	return g
}

// WithClock overrides the clock for deterministic testing.
func (g *Gate) WithClock(clock func() time.Time) *Gate {
	g.clock = clock
	return g
}

// Denials exposes the denial ledger.
func (g *Gate) Denials() *DenialLedger { return g.denials }

// Admit runs the full pipeline: snapshot validation, compliance
// scoring, conflict detection, then tiered verification. Errors are
// returned only for malformed input; every evaluated outcome,
// including every denial, is a decision, not an error.
func (g *Gate) Admit(ctx context.Context, req Request) (*contracts.AdmissionDecision, error) {
	reg, err := registry.New(req.Principles)
	if err != nil {
		return nil, err
	}
	if err := reg.CheckSpecVersion(req.Candidate); err != nil {
		return nil, err
	}

	report, err := g.scorer.Score(ctx, req.Candidate, reg)
	if err != nil {
		return nil, err
	}

	detector := conflict.NewDetector(req.Strategy, reg)
	conflicts := detector.Detect(req.Candidate, req.ActivePolicies)

	decision := &contracts.AdmissionDecision{
		PolicyID:   req.Candidate.ID,
		Compliance: report,
		Conflicts:  conflicts,
	}

	if !report.Allowed {
		g.deny(ctx, decision, contracts.OutcomeComplianceFailed, DenialCompliance, complianceReasons(report))
		return decision, nil
	}

	if blocked, reasons := blockingConflicts(conflicts); blocked {
		g.deny(ctx, decision, contracts.OutcomeConflictBlocked, DenialConflict, reasons)
		return decision, nil
	}

	verifyStart := g.clock()
	vreq, _, err := g.orch.Submit(ctx, req.Candidate, req.SafetyProperties, report.AggregateScore)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()
	result, waitErr := vreq.Await(waitCtx)
	decision.Verification = &result

	if waitErr == nil {
		if dr, ok := g.metrics.(DurationRecorder); ok {
			dr.RecordVerificationDuration(ctx, result.Tier, g.clock().Sub(verifyStart))
		}
	}

	if waitErr != nil {
		// Still in flight. A pending human review is reported as
		// escalated-pending; anything else that outlived the wait is a
		// verification timeout. Both are denials: fail closed.
		if result.State == contracts.StateHumanReview {
			g.deny(ctx, decision, contracts.OutcomeEscalatedPending, DenialVerification,
				[]string{fmt.Sprintf("verification pending human review (fingerprint %s)", result.Fingerprint)})
		} else {
			g.deny(ctx, decision, contracts.OutcomeVerificationTimeout, DenialVerification,
				[]string{fmt.Sprintf("verification did not complete within %s (state %s)", g.wait, result.State)})
		}
		return decision, nil
	}

	switch result.State {
	case contracts.StateVerified:
		decision.Allowed = true
		decision.Outcome = contracts.OutcomeAdmitted
		decision.DecidedAt = g.clock()
		g.record(ctx, audit.EventAdmission, decision, nil)
		if g.metrics != nil {
			g.metrics.RecordAdmission(ctx, decision.Outcome)
		}
	case contracts.StateFailed:
		g.deny(ctx, decision, contracts.OutcomeVerificationFailed, DenialVerification,
			[]string{fmt.Sprintf("verification failed at %s tier: %s", result.Tier, result.FailureCause)})
	default: // Escalated
		g.deny(ctx, decision, contracts.OutcomeEscalatedPending, DenialVerification,
			[]string{fmt.Sprintf("verification escalated at %s tier: %s", result.Tier, lastRationale(result))})
	}
	return decision, nil
}

func (g *Gate) deny(ctx context.Context, decision *contracts.AdmissionDecision, outcome contracts.AdmissionOutcome, reason DenialReason, reasons []string) {
	decision.Allowed = false
	decision.Outcome = outcome
	decision.Reasons = reasons
	decision.DecidedAt = g.clock()

	receipt := g.denials.Deny(decision.PolicyID, reason, joinReasons(reasons))
	g.record(ctx, audit.EventDenial, decision, map[string]interface{}{"receipt_id": receipt.ReceiptID})
	if g.metrics != nil {
		g.metrics.RecordAdmission(ctx, outcome)
	}
	g.logger.Info("admission denied",
		"policy_id", decision.PolicyID, "outcome", outcome, "receipt_id", receipt.ReceiptID)
}

func (g *Gate) record(ctx context.Context, eventType audit.EventType, decision *contracts.AdmissionDecision, metadata map[string]interface{}) {
	if g.auditor == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["outcome"] = string(decision.Outcome)
	if err := g.auditor.Record(ctx, eventType, "gate", "admit", decision.PolicyID, metadata); err != nil {
		g.logger.Error("admission audit record", "policy_id", decision.PolicyID, "error", err)
	}
}

func complianceReasons(report *contracts.ComplianceReport) []string {
	var reasons []string
	for _, id := range report.MandatoryUnmet {
		reasons = append(reasons, fmt.Sprintf("unmet mandatory principle %q", id))
	}
	for _, v := range report.Violations {
		reasons = append(reasons, fmt.Sprintf("denylist violation: %s", v))
	}
	if report.AggregateScore < report.Threshold {
		reasons = append(reasons, fmt.Sprintf("aggregate score %.2f below threshold %.2f", report.AggregateScore, report.Threshold))
	}
	return reasons
}

func blockingConflicts(conflicts []contracts.ConflictReport) (bool, []string) {
	var reasons []string
	for _, c := range conflicts {
		if c.Blocking() {
			reasons = append(reasons, fmt.Sprintf("%s between %q and %q (critical, unresolved)", c.Type, c.PolicyA, c.PolicyB))
		}
	}
	return len(reasons) > 0, reasons
}

func lastRationale(result contracts.VerificationResult) string {
	if len(result.Trail) == 0 {
		return "no transitions recorded"
	}
	return result.Trail[len(result.Trail)-1].Rationale
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}
