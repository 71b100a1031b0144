package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/concord-labs/concord/pkg/contracts"
)

func TestNew_DisabledProviderIsInert(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	p, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Meter())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestMetrics_RecordAdmissionOutcomes(t *testing.T) {
	m, err := NewMetrics(otel.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAdmission(ctx, contracts.OutcomeAdmitted)
	m.RecordAdmission(ctx, contracts.OutcomeComplianceFailed)
	m.RecordAdmission(ctx, contracts.OutcomeEscalatedPending)
	m.RecordVerificationDuration(ctx, contracts.TierRigorous, 2*time.Second)
}
