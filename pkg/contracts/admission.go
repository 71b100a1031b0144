package contracts

import "time"

// AdmissionOutcome is the terminal classification of an admission attempt.
type AdmissionOutcome string

const (
	OutcomeAdmitted            AdmissionOutcome = "ADMITTED"
	OutcomeComplianceFailed    AdmissionOutcome = "COMPLIANCE_FAILED"
	OutcomeConflictBlocked     AdmissionOutcome = "CONFLICT_BLOCKED"
	OutcomeVerificationFailed  AdmissionOutcome = "VERIFICATION_FAILED"
	OutcomeEscalatedPending    AdmissionOutcome = "ESCALATED_PENDING_HUMAN"
	OutcomeVerificationTimeout AdmissionOutcome = "VERIFICATION_TIMEOUT"
)

// AdmissionDecision is the full, reproducible result of one admission
// attempt. Every denial carries the specific reasons; there are no
// generic rejections.
type AdmissionDecision struct {
	PolicyID     string              `json:"policy_id"`
	Allowed      bool                `json:"allowed"`
	Outcome      AdmissionOutcome    `json:"outcome"`
	Reasons      []string            `json:"reasons,omitempty"`
	Compliance   *ComplianceReport   `json:"compliance,omitempty"`
	Conflicts    []ConflictReport    `json:"conflicts,omitempty"`
	Verification *VerificationResult `json:"verification,omitempty"`
	DecidedAt    time.Time           `json:"decided_at"`
}
