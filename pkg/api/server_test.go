package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-labs/concord/pkg/admission"
	"github.com/concord-labs/concord/pkg/compliance"
	"github.com/concord-labs/concord/pkg/contracts"
	"github.com/concord-labs/concord/pkg/schema"
	"github.com/concord-labs/concord/pkg/verification"
)

type stubSolver struct {
	result *verification.SolverResult
}

func (s stubSolver) Verify(ctx context.Context, assertions []string, timeout time.Duration) (*verification.SolverResult, error) {
	return s.result, nil
}

func testServer(t *testing.T) (*Server, *verification.ReviewQueue) {
	t.Helper()
	cfg := verification.DefaultConfig()
	cfg.ReviewDeadline = time.Hour
	queue := verification.NewReviewQueue()
	orch, err := verification.NewOrchestrator(cfg, stubSolver{result: &verification.SolverResult{Status: verification.StatusUnsat}}, queue)
	require.NoError(t, err)
	gate := admission.NewGate(compliance.NewScorer(), orch).WithDecisionWait(200 * time.Millisecond)
	return NewServer(gate, queue), queue
}

func admitBody(t *testing.T, req admission.Request) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func basePrinciples() []contracts.Principle {
	return []contracts.Principle{
		{ID: "p-safety", Category: contracts.CategorySafety, Weight: 0.9, Mandatory: true, KeywordEvidence: []string{"failsafe"}},
	}
}

func baseCandidate() contracts.Policy {
	return contracts.Policy{
		ID: "pol-api", Risk: contracts.RiskLow, Action: contracts.ActionAllow,
		Subject: "clinician", Resource: "record",
		Content: "Every write path has a failsafe rollback.",
	}
}

func TestHandleAdmit_CompliantPolicyReturns200(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admit", admitBody(t, admission.Request{
		Candidate:  baseCandidate(),
		Principles: basePrinciples(),
	}))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var decision contracts.AdmissionDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.True(t, decision.Allowed)
	assert.Equal(t, contracts.OutcomeAdmitted, decision.Outcome)
}

func TestHandleAdmit_ComplianceFailureReturns422(t *testing.T) {
	srv, _ := testServer(t)

	candidate := baseCandidate()
	candidate.Content = "No safeguards at all."

	req := httptest.NewRequest(http.MethodPost, "/v1/admit", admitBody(t, admission.Request{
		Candidate:  candidate,
		Principles: basePrinciples(),
	}))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleAdmit_CriticalConflictReturns409(t *testing.T) {
	srv, _ := testServer(t)

	candidate := baseCandidate()
	candidate.Category = contracts.CategorySafety

	req := httptest.NewRequest(http.MethodPost, "/v1/admit", admitBody(t, admission.Request{
		Candidate:  candidate,
		Principles: basePrinciples(),
		ActivePolicies: []contracts.Policy{{
			ID: "pol-old", Subject: "clinician", Resource: "record",
			Action: contracts.ActionDeny,
		}},
		Strategy: contracts.ResolvePriorityBased,
	}))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleAdmit_PendingReviewReturns202(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admit", admitBody(t, admission.Request{
		Candidate:  baseCandidate(),
		Principles: basePrinciples(),
		SafetyProperties: []contracts.SafetyProperty{{
			ID: "sp-1", Kind: contracts.PropertySafety,
			FormalSpec: "(safe)", Criticality: contracts.CriticalityCritical,
		}},
	}))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleAdmit_MalformedBodyReturns400(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admit", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandleAdmit_InvalidPrinciplesReturns400(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admit", admitBody(t, admission.Request{
		Candidate:  baseCandidate(),
		Principles: []contracts.Principle{{ID: "p-bad", Category: contracts.CategorySafety, Weight: 7}},
	}))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAdmit_SchemaViolationReturns400(t *testing.T) {
	srv, _ := testServer(t)
	validator, err := schema.NewValidator()
	require.NoError(t, err)
	srv.WithValidator(validator)

	candidate := baseCandidate()
	candidate.SpecVersion = "not-semver"

	req := httptest.NewRequest(http.MethodPost, "/v1/admit", admitBody(t, admission.Request{
		Candidate:  candidate,
		Principles: basePrinciples(),
	}))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewEndpoints_ApproveResolvesTicket(t *testing.T) {
	srv, queue := testServer(t)

	ch, err := queue.Submit(context.Background(), verification.ReviewTicket{
		TicketID: "tick-1", Fingerprint: "sha256:abc", PolicyID: "pol-api",
	})
	require.NoError(t, err)

	body, _ := json.Marshal(reviewBody{ReviewerID: "reviewer:alex", Rationale: "verified manually", ConfidenceAdjustment: 0.1})
	req := httptest.NewRequest(http.MethodPost, "/v1/reviews/tick-1/approve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case decision := <-ch:
		assert.Equal(t, verification.OutcomeApprove, decision.Outcome)
		assert.Equal(t, "reviewer:alex", decision.ReviewerID)
		assert.Equal(t, 0.1, decision.ConfidenceAdjustment)
	case <-time.After(time.Second):
		t.Fatal("decision not delivered")
	}
	assert.Empty(t, queue.Pending())
}

func TestReviewEndpoints_UnknownTicketReturns404(t *testing.T) {
	srv, _ := testServer(t)

	body, _ := json.Marshal(reviewBody{ReviewerID: "reviewer:alex"})
	req := httptest.NewRequest(http.MethodPost, "/v1/reviews/missing/reject", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewEndpoints_MissingReviewerReturns400(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/reviews/tick-1/approve", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDenials_QueryByPolicy(t *testing.T) {
	srv, _ := testServer(t)

	candidate := baseCandidate()
	candidate.Content = "No safeguards at all."
	admitReq := httptest.NewRequest(http.MethodPost, "/v1/admit", admitBody(t, admission.Request{
		Candidate:  candidate,
		Principles: basePrinciples(),
	}))
	srv.Routes().ServeHTTP(httptest.NewRecorder(), admitReq)

	req := httptest.NewRequest(http.MethodGet, "/v1/denials?policy_id=pol-api", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Receipts []admission.DenialReceipt `json:"receipts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Receipts, 1)
	assert.Equal(t, "pol-api", resp.Receipts[0].PolicyID)
}

func TestHandleDenials_MissingFilterReturns400(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/denials", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiter_Returns429AfterBurst(t *testing.T) {
	srv, _ := testServer(t)
	srv.WithRateLimiter(NewGlobalRateLimiter(1, 2))

	handler := srv.Routes()
	var last int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:4444"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
