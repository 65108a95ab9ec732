package syncer

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shaibs3/canvascache/internal/apperrors"
)

type syncMetrics struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
	items      metric.Int64Counter
}

func newSyncMetrics(meter metric.Meter) (*syncMetrics, error) {
	operations, err := meter.Int64Counter("canvascache_sync_operations",
		metric.WithDescription("Register, refresh and delete operations by outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("canvascache_sync_duration_seconds",
		metric.WithDescription("Duration of sync operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	items, err := meter.Int64Counter("canvascache_walk_items",
		metric.WithDescription("Upstream fetches made by the item walk by kind and result"))
	if err != nil {
		return nil, err
	}
	return &syncMetrics{operations: operations, duration: duration, items: items}, nil
}

func (m *syncMetrics) recordOperation(ctx context.Context, op string, start time.Time, err error) {
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcomeOf(err)),
	)
	m.operations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (m *syncMetrics) recordItem(ctx context.Context, kind, result string) {
	m.items.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrValidation):
		return "invalid"
	case errors.Is(err, apperrors.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
