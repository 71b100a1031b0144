package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/concord-labs/concord/pkg/admission"
	"github.com/concord-labs/concord/pkg/contracts"
	"github.com/concord-labs/concord/pkg/schema"
	"github.com/concord-labs/concord/pkg/verification"
)

// Server wires the admission gate and the review queue to HTTP.
type Server struct {
	gate      *admission.Gate
	queue     *verification.ReviewQueue
	limiter   *GlobalRateLimiter
	validator *schema.Validator
	logger    *slog.Logger
}

// NewServer creates an API server.
func NewServer(gate *admission.Gate, queue *verification.ReviewQueue) *Server {
	return &Server{
		gate:   gate,
		queue:  queue,
		logger: slog.Default().With("component", "api"),
	}
}

// WithRateLimiter attaches a per-IP rate limiter to the router.
func (s *Server) WithRateLimiter(rl *GlobalRateLimiter) *Server {
	s.limiter = rl
	return s
}

// WithValidator enables JSON Schema validation of candidate policies.
func (s *Server) WithValidator(v *schema.Validator) *Server {
	s.validator = v
	return s
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/admit", s.handleAdmit)
	mux.HandleFunc("GET /v1/denials", s.handleDenials)
	mux.HandleFunc("GET /v1/reviews", s.handleListReviews)
	mux.HandleFunc("POST /v1/reviews/{id}/approve", s.reviewHandler(verification.OutcomeApprove))
	mux.HandleFunc("POST /v1/reviews/{id}/reject", s.reviewHandler(verification.OutcomeReject))
	mux.HandleFunc("POST /v1/reviews/{id}/escalate", s.reviewHandler(verification.OutcomeEscalate))
	mux.HandleFunc("GET /healthz", s.handleHealth)

	var handler http.Handler = mux
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	return handler
}

// statusFor maps an admission outcome to its HTTP status.
func statusFor(outcome contracts.AdmissionOutcome) int {
	switch outcome {
	case contracts.OutcomeAdmitted:
		return http.StatusOK
	case contracts.OutcomeConflictBlocked:
		return http.StatusConflict
	case contracts.OutcomeComplianceFailed, contracts.OutcomeVerificationFailed:
		return http.StatusUnprocessableEntity
	case contracts.OutcomeEscalatedPending:
		return http.StatusAccepted
	case contracts.OutcomeVerificationTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	var req admission.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Candidate.ID == "" {
		WriteBadRequest(w, "Missing required field: candidate.id")
		return
	}

	if s.validator != nil {
		raw, err := json.Marshal(req.Candidate)
		if err != nil {
			WriteInternal(w, err)
			return
		}
		if _, err := s.validator.ValidatePolicy(raw); err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
	}

	decision, err := s.gate.Admit(r.Context(), req)
	if err != nil {
		if contracts.IsValidation(err) {
			WriteBadRequest(w, err.Error())
			return
		}
		WriteInternal(w, err)
		return
	}

	s.logger.Info("admission decided",
		"policy_id", decision.PolicyID, "outcome", decision.Outcome, "allowed", decision.Allowed)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(decision.Outcome))
	_ = json.NewEncoder(w).Encode(decision)
}

func (s *Server) handleDenials(w http.ResponseWriter, r *http.Request) {
	policyID := r.URL.Query().Get("policy_id")

	var receipts []admission.DenialReceipt
	if policyID != "" {
		receipts = s.gate.Denials().QueryByPolicy(policyID)
	} else if reason := r.URL.Query().Get("reason"); reason != "" {
		receipts = s.gate.Denials().QueryByReason(admission.DenialReason(reason))
	} else {
		WriteBadRequest(w, "One of policy_id or reason query parameters is required")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"receipts": receipts})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"tickets": s.queue.Pending()})
}

// reviewBody is the payload for resolving a review ticket.
type reviewBody struct {
	ReviewerID           string  `json:"reviewer_id"`
	Rationale            string  `json:"rationale"`
	ConfidenceAdjustment float64 `json:"confidence_adjustment"`
	RequireProof         bool    `json:"require_proof"`
}

func (s *Server) reviewHandler(outcome verification.ReviewOutcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticketID := r.PathValue("id")

		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var body reviewBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteBadRequest(w, "Invalid request body")
			return
		}
		if body.ReviewerID == "" {
			WriteBadRequest(w, "Missing required field: reviewer_id")
			return
		}

		err := s.queue.Resolve(ticketID, verification.ReviewDecision{
			Outcome:              outcome,
			ReviewerID:           body.ReviewerID,
			Rationale:            body.Rationale,
			ConfidenceAdjustment: body.ConfidenceAdjustment,
			RequireProof:         body.RequireProof,
		})
		if err != nil {
			WriteNotFound(w, err.Error())
			return
		}

		s.logger.Info("review resolved",
			"ticket_id", ticketID, "outcome", outcome, "reviewer_id", body.ReviewerID)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"ticket_id": ticketID, "status": "resolved"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
