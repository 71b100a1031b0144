package verification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/concord-labs/concord/pkg/contracts"
)

// ReviewOutcome is the human reviewer's decision.
type ReviewOutcome string

const (
	OutcomeApprove  ReviewOutcome = "approve"
	OutcomeReject   ReviewOutcome = "reject"
	OutcomeEscalate ReviewOutcome = "escalate" // reviewer demands formal proof
)

// ReviewTicket is the work item handed to the human-review collaborator.
type ReviewTicket struct {
	TicketID    string                     `json:"ticket_id"`
	Fingerprint string                     `json:"fingerprint"`
	PolicyID    string                     `json:"policy_id"`
	Properties  []contracts.SafetyProperty `json:"properties,omitempty"`
	SubmittedAt time.Time                  `json:"submitted_at"`
	ExpiresAt   time.Time                  `json:"expires_at"`
}

// ReviewDecision resolves a ticket.
type ReviewDecision struct {
	Outcome              ReviewOutcome `json:"outcome"`
	ReviewerID           string        `json:"reviewer_id"`
	Rationale            string        `json:"rationale"`
	ConfidenceAdjustment float64       `json:"confidence_adjustment"`
	RequireProof         bool          `json:"require_proof"`
}

// Reviewer is the abstract human-review collaborator: submitting a
// ticket yields an async handle that either resolves to a decision or
// times out on the orchestrator's side.
type Reviewer interface {
	Submit(ctx context.Context, ticket ReviewTicket) (<-chan ReviewDecision, error)
}

// ReviewQueue is the in-process Reviewer. Tickets wait until an
// external caller (typically the review API) resolves them.
type ReviewQueue struct {
	mu      sync.Mutex
	pending map[string]pendingReview
}

type pendingReview struct {
	ticket ReviewTicket
	ch     chan ReviewDecision
}

// NewReviewQueue creates an empty queue.
func NewReviewQueue() *ReviewQueue {
	return &ReviewQueue{pending: make(map[string]pendingReview)}
}

// Submit implements Reviewer.
func (q *ReviewQueue) Submit(ctx context.Context, ticket ReviewTicket) (<-chan ReviewDecision, error) {
	_ = ctx
	if ticket.TicketID == "" {
		ticket.TicketID = uuid.New().String()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.pending[ticket.TicketID]; dup {
		return nil, fmt.Errorf("review: ticket %q already pending", ticket.TicketID)
	}

	// Buffered so a late Resolve never blocks after the orchestrator
	// has moved on (deadline or cancellation).
	ch := make(chan ReviewDecision, 1)
	q.pending[ticket.TicketID] = pendingReview{ticket: ticket, ch: ch}
	return ch, nil
}

// Resolve delivers a decision for a pending ticket.
func (q *ReviewQueue) Resolve(ticketID string, decision ReviewDecision) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.pending[ticketID]
	if !ok {
		return fmt.Errorf("review: ticket %q not found", ticketID)
	}
	delete(q.pending, ticketID)
	p.ch <- decision
	return nil
}

// Pending lists tickets awaiting a decision.
func (q *ReviewQueue) Pending() []ReviewTicket {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]ReviewTicket, 0, len(q.pending))
	for _, p := range q.pending {
		out = append(out, p.ticket)
	}
	return out
}

// Abandon drops a pending ticket, used when the orchestrator's review
// deadline fires before any decision arrives.
func (q *ReviewQueue) Abandon(ticketID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, ticketID)
}
