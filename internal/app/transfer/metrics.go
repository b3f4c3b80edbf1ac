package transfer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
)

// VigilanteMetrics defines the metrics recorded by the reconciliation loop.
type VigilanteMetrics interface {
	IncTransition(ctx context.Context, from, to transfer.DatasetStatus)
	IncCopiesDispatched(ctx context.Context)
	IncCopyFailures(ctx context.Context)
	IncScanFailures(ctx context.Context)
	ObserveScanDuration(ctx context.Context, d time.Duration)
	ObserveSnapshotSize(ctx context.Context, n int)
}

type vigilanteMetrics struct {
	transitions      metric.Int64Counter
	copiesDispatched metric.Int64Counter
	copyFailures     metric.Int64Counter
	scanFailures     metric.Int64Counter
	scanDuration     metric.Float64Histogram
	snapshotSize     metric.Int64Histogram

	messagesPublished metric.Int64Counter
	publishErrors     metric.Int64Counter
}

const namespace = "vigilante"

// NewVigilanteMetrics creates the reconciliation metrics on mp.
func NewVigilanteMetrics(mp metric.MeterProvider) (*vigilanteMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(vigilanteMetrics)
	var err error

	if m.transitions, err = meter.Int64Counter(
		"dataset_transitions_total",
		metric.WithDescription("Total number of applied dataset transfer state transitions"),
	); err != nil {
		return nil, err
	}

	if m.copiesDispatched, err = meter.Int64Counter(
		"copies_dispatched_total",
		metric.WithDescription("Total number of files handed to the copy subsystem"),
	); err != nil {
		return nil, err
	}

	if m.copyFailures, err = meter.Int64Counter(
		"copy_failures_total",
		metric.WithDescription("Total number of failed copies to the pickup area"),
	); err != nil {
		return nil, err
	}

	if m.scanFailures, err = meter.Int64Counter(
		"scan_failures_total",
		metric.WithDescription("Total number of aborted reconciliation passes"),
	); err != nil {
		return nil, err
	}

	if m.scanDuration, err = meter.Float64Histogram(
		"scan_duration_seconds",
		metric.WithDescription("Time taken by one reconciliation pass"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.snapshotSize, err = meter.Int64Histogram(
		"snapshot_datasets",
		metric.WithDescription("Number of datasets in the per-pass state snapshot"),
	); err != nil {
		return nil, err
	}

	// Event bus metrics.
	if m.messagesPublished, err = meter.Int64Counter(
		"messages_published_total",
		metric.WithDescription("Total number of messages published"),
	); err != nil {
		return nil, err
	}

	if m.publishErrors, err = meter.Int64Counter(
		"publish_errors_total",
		metric.WithDescription("Total number of publish errors"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *vigilanteMetrics) IncTransition(ctx context.Context, from, to transfer.DatasetStatus) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (m *vigilanteMetrics) IncCopiesDispatched(ctx context.Context) { m.copiesDispatched.Add(ctx, 1) }
func (m *vigilanteMetrics) IncCopyFailures(ctx context.Context)     { m.copyFailures.Add(ctx, 1) }
func (m *vigilanteMetrics) IncScanFailures(ctx context.Context)     { m.scanFailures.Add(ctx, 1) }

func (m *vigilanteMetrics) ObserveScanDuration(ctx context.Context, d time.Duration) {
	m.scanDuration.Record(ctx, d.Seconds())
}

func (m *vigilanteMetrics) ObserveSnapshotSize(ctx context.Context, n int) {
	m.snapshotSize.Record(ctx, int64(n))
}

// EventBusMetrics implementation
func (m *vigilanteMetrics) IncMessagePublished(ctx context.Context, topic string) {
	m.messagesPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *vigilanteMetrics) IncPublishError(ctx context.Context, topic string) {
	m.publishErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}
