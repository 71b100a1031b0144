package contracts

import "time"

// VerificationState is the state of a verification request's escalation
// machine. States only move forward or to a terminal state.
type VerificationState string

const (
	StatePending              VerificationState = "PENDING"
	StateAutomatedReview      VerificationState = "AUTOMATED_REVIEW"
	StateHumanReview          VerificationState = "HUMAN_REVIEW"
	StateRigorousVerification VerificationState = "RIGOROUS_VERIFICATION"
	StateVerified             VerificationState = "VERIFIED"
	StateFailed               VerificationState = "FAILED"
	StateEscalated            VerificationState = "ESCALATED"
)

// Terminal reports whether the state is final and immutable.
func (s VerificationState) Terminal() bool {
	return s == StateVerified || s == StateFailed || s == StateEscalated
}

// VerificationTier is the assurance level a request is currently at.
// Tiers are strictly ordered: Automated < HumanInLoop < Rigorous.
type VerificationTier int

const (
	TierAutomated VerificationTier = iota + 1
	TierHumanInLoop
	TierRigorous
)

func (t VerificationTier) String() string {
	switch t {
	case TierAutomated:
		return "automated"
	case TierHumanInLoop:
		return "human_in_loop"
	case TierRigorous:
		return "rigorous"
	default:
		return "unknown"
	}
}

// PropertyKind classifies a safety property.
type PropertyKind string

const (
	PropertySafety   PropertyKind = "safety"
	PropertySecurity PropertyKind = "security"
	PropertyFairness PropertyKind = "fairness"
	PropertyLiveness PropertyKind = "liveness"
)

// Criticality ranks how much a safety property matters to the outcome.
type Criticality string

const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

// SafetyProperty is a property the candidate policy must uphold.
// FormalSpec is opaque to the engine and passed through to the solver.
type SafetyProperty struct {
	ID          string       `json:"id"`
	Kind        PropertyKind `json:"kind"`
	FormalSpec  string       `json:"formal_spec"`
	Criticality Criticality  `json:"criticality"`
}

// Transition is one immutable audit-trail record. The trail is
// append-only and never rewritten.
type Transition struct {
	Timestamp       time.Time         `json:"timestamp"`
	Actor           string            `json:"actor"`
	From            VerificationState `json:"from"`
	To              VerificationState `json:"to"`
	Rationale       string            `json:"rationale"`
	ConfidenceDelta float64           `json:"confidence_delta"`
}

// VerificationResult is the snapshot of a verification request as seen
// by callers.
type VerificationResult struct {
	Fingerprint  string            `json:"fingerprint"`
	State        VerificationState `json:"state"`
	Tier         VerificationTier  `json:"tier"`
	Confidence   float64           `json:"confidence"`
	FailureCause string            `json:"failure_cause,omitempty"`
	Trail        []Transition      `json:"trail"`
}
