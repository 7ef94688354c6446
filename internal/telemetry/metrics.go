package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// ReconcileMetricsMeterName is the name used for the reconcile metrics meter
	ReconcileMetricsMeterName = "github.com/stacklok/boostsync/reconcile"

	// VanityMetricsMeterName is the name used for the vanity poller metrics meter
	VanityMetricsMeterName = "github.com/stacklok/boostsync/vanity"
)

// ReconcileMetrics holds the OpenTelemetry instruments for reconciliation
type ReconcileMetrics struct {
	duration  metric.Float64Histogram
	mutations metric.Int64Counter
}

// NewReconcileMetrics creates a new ReconcileMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewReconcileMetrics(provider metric.MeterProvider) (*ReconcileMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ReconcileMetricsMeterName)

	duration, err := meter.Float64Histogram(
		"boostsync_reconcile_duration_seconds",
		metric.WithDescription("Duration of member reconciliations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	mutations, err := meter.Int64Counter(
		"boostsync_role_mutations_total",
		metric.WithDescription("Role additions and removals performed"),
		metric.WithUnit("{mutation}"),
	)
	if err != nil {
		return nil, err
	}

	return &ReconcileMetrics{
		duration:  duration,
		mutations: mutations,
	}, nil
}

// RecordReconcile records one reconciliation keyed by what triggered it
func (m *ReconcileMetrics) RecordReconcile(ctx context.Context, trigger string, duration time.Duration, success bool) {
	if m == nil || m.duration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("trigger", trigger),
		attribute.Bool("success", success),
	}

	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordMutation records a single role add or remove
func (m *ReconcileMetrics) RecordMutation(ctx context.Context, op, roleID string) {
	if m == nil || m.mutations == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("op", op),
		attribute.String("role", roleID),
	}

	m.mutations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// VanityMetrics holds the OpenTelemetry instruments for the vanity poller
type VanityMetrics struct {
	probes        metric.Int64Counter
	notifications metric.Int64Counter
}

// NewVanityMetrics creates a new VanityMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewVanityMetrics(provider metric.MeterProvider) (*VanityMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(VanityMetricsMeterName)

	probes, err := meter.Int64Counter(
		"boostsync_vanity_probes_total",
		metric.WithDescription("Vanity code availability probes by outcome"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	notifications, err := meter.Int64Counter(
		"boostsync_vanity_notifications_total",
		metric.WithDescription("Availability notifications sent"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	return &VanityMetrics{
		probes:        probes,
		notifications: notifications,
	}, nil
}

// RecordProbe records one probe observation for a code
func (m *VanityMetrics) RecordProbe(ctx context.Context, code, outcome string) {
	if m == nil || m.probes == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("code", code),
		attribute.String("outcome", outcome),
	}

	m.probes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotification records a notification attempt for a code
func (m *VanityMetrics) RecordNotification(ctx context.Context, code string, success bool) {
	if m == nil || m.notifications == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("code", code),
		attribute.Bool("success", success),
	}

	m.notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}
