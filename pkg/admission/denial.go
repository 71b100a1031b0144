// Package admission composes the compliance scorer, conflict detector,
// and verification orchestrator into the fail-closed admission gate.
//
// If compliance, conflict freedom, or verification cannot be
// established, the gate refuses the policy and emits a DenialReceipt.
// No best-effort admissions.
package admission

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// DenialReason categorizes why a policy was refused.
type DenialReason string

const (
	DenialCompliance   DenialReason = "COMPLIANCE"
	DenialConflict     DenialReason = "CONFLICT"
	DenialVerification DenialReason = "VERIFICATION"
	DenialValidation   DenialReason = "VALIDATION"
)

// DenialReceipt is the proof artifact emitted when the gate refuses a
// policy. Every refusal is receipted; no silent drops.
type DenialReceipt struct {
	ReceiptID   string       `json:"receipt_id"`
	DeniedAt    time.Time    `json:"denied_at"`
	PolicyID    string       `json:"policy_id"`
	Reason      DenialReason `json:"reason"`
	Details     string       `json:"details"`
	ContentHash string       `json:"content_hash"`
}

// DenialLedger records all denial receipts for audit.
type DenialLedger struct {
	mu       sync.Mutex
	receipts []DenialReceipt
	seq      int64
	clock    func() time.Time
}

// NewDenialLedger creates a new ledger.
func NewDenialLedger() *DenialLedger {
	return &DenialLedger{
		receipts: make([]DenialReceipt, 0),
		clock:    time.Now,
	}
}

// WithClock overrides clock for testing.
func (l *DenialLedger) WithClock(clock func() time.Time) *DenialLedger {
	l.clock = clock
	return l
}

// Deny records a denial and returns the receipt.
func (l *DenialLedger) Deny(policyID string, reason DenialReason, details string) *DenialReceipt {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	receiptID := fmt.Sprintf("denial-%d", l.seq)

	hashInput := fmt.Sprintf("%s:%s:%s:%s", receiptID, policyID, reason, details)
	h := sha256.Sum256([]byte(hashInput))

	receipt := DenialReceipt{
		ReceiptID:   receiptID,
		DeniedAt:    l.clock(),
		PolicyID:    policyID,
		Reason:      reason,
		Details:     details,
		ContentHash: "sha256:" + hex.EncodeToString(h[:]),
	}

	l.receipts = append(l.receipts, receipt)
	return &receipt
}

// Get retrieves a denial by receipt ID.
func (l *DenialLedger) Get(receiptID string) (*DenialReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range l.receipts {
		if r.ReceiptID == receiptID {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("denial receipt %q not found", receiptID)
}

// QueryByReason returns all denials for a given reason.
func (l *DenialLedger) QueryByReason(reason DenialReason) []DenialReceipt {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []DenialReceipt
	for _, r := range l.receipts {
		if r.Reason == reason {
			result = append(result, r)
		}
	}
	return result
}

// QueryByPolicy returns all denials for a given policy.
func (l *DenialLedger) QueryByPolicy(policyID string) []DenialReceipt {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []DenialReceipt
	for _, r := range l.receipts {
		if r.PolicyID == policyID {
			result = append(result, r)
		}
	}
	return result
}

// Length returns the number of denials.
func (l *DenialLedger) Length() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.receipts)
}
