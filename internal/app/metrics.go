package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen/quoteboard/internal/domain"
)

// syncMetrics holds sync engine instruments. A nil *syncMetrics records nothing.
type syncMetrics struct {
	runs      metric.Int64Counter
	added     metric.Int64Counter
	updated   metric.Int64Counter
	conflicts metric.Int64Counter
}

func newSyncMetrics() (*syncMetrics, error) {
	meter := otel.Meter(instrumentationName)

	runs, err := meter.Int64Counter(
		"quotes.sync.runs",
		metric.WithDescription("Sync attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	added, err := meter.Int64Counter(
		"quotes.sync.added",
		metric.WithDescription("Remote quotes inserted by sync"),
	)
	if err != nil {
		return nil, err
	}

	updated, err := meter.Int64Counter(
		"quotes.sync.updated",
		metric.WithDescription("Local quotes overwritten by newer remote versions"),
	)
	if err != nil {
		return nil, err
	}

	conflicts, err := meter.Int64Counter(
		"quotes.sync.conflicts",
		metric.WithDescription("Last-write-wins conflicts resolved by sync"),
	)
	if err != nil {
		return nil, err
	}

	return &syncMetrics{
		runs:      runs,
		added:     added,
		updated:   updated,
		conflicts: conflicts,
	}, nil
}

func (m *syncMetrics) recordSuccess(ctx context.Context, r domain.MergeResult) {
	if m == nil {
		return
	}

	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
	m.added.Add(ctx, int64(r.Added))
	m.updated.Add(ctx, int64(r.Updated))
	m.conflicts.Add(ctx, int64(r.Conflicts))
}

func (m *syncMetrics) recordFailure(ctx context.Context) {
	if m == nil {
		return
	}

	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failure")))
}
