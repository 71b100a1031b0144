package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/concord-labs/concord/pkg/contracts"
)

// Metrics holds the governance engine instruments. It satisfies the
// admission gate's Recorder interface.
type Metrics struct {
	admissions    metric.Int64Counter
	denials       metric.Int64Counter
	escalations   metric.Int64Counter
	verifyLatency metric.Float64Histogram
}

// NewMetrics creates the engine instruments on a meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.admissions, err = meter.Int64Counter("concord.admissions.total",
		metric.WithDescription("Total admission decisions by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	m.denials, err = meter.Int64Counter("concord.denials.total",
		metric.WithDescription("Total admission denials by outcome"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		return nil, err
	}

	m.escalations, err = meter.Int64Counter("concord.escalations.total",
		metric.WithDescription("Total verification escalations to human review"),
		metric.WithUnit("{escalation}"),
	)
	if err != nil {
		return nil, err
	}

	m.verifyLatency, err = meter.Float64Histogram("concord.verification.duration",
		metric.WithDescription("End-to-end verification duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordAdmission counts one admission decision.
func (m *Metrics) RecordAdmission(ctx context.Context, outcome contracts.AdmissionOutcome) {
	attrs := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	if outcome == contracts.OutcomeAdmitted {
		m.admissions.Add(ctx, 1, attrs)
		return
	}
	m.denials.Add(ctx, 1, attrs)
	if outcome == contracts.OutcomeEscalatedPending {
		m.escalations.Add(ctx, 1, attrs)
	}
}

// RecordVerificationDuration records how long a verification run took.
func (m *Metrics) RecordVerificationDuration(ctx context.Context, tier contracts.VerificationTier, d time.Duration) {
	m.verifyLatency.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("tier", tier.String())))
}
