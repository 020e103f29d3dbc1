package usecase

import (
	"context"
	"time"

	"github.com/allisson/heatpump-outbox/internal/metrics"
	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

// outboxUseCaseWithMetrics decorates OutboxUseCase with metrics instrumentation.
type outboxUseCaseWithMetrics struct {
	next    OutboxUseCase
	metrics metrics.BusinessMetrics
}

// NewOutboxUseCaseWithMetrics wraps an OutboxUseCase with metrics recording.
func NewOutboxUseCaseWithMetrics(useCase OutboxUseCase, m metrics.BusinessMetrics) OutboxUseCase {
	return &outboxUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// GetStatus records metrics for outbox status lookups.
func (o *outboxUseCaseWithMetrics) GetStatus(ctx context.Context, id int64) (*outboxDomain.OutboxEntry, error) {
	start := time.Now()
	entry, err := o.next.GetStatus(ctx, id)

	status := "success"
	if err != nil {
		status = "error"
	}

	o.metrics.RecordOperation(ctx, metricsDomain, "outbox_get", status)
	o.metrics.RecordDuration(ctx, metricsDomain, "outbox_get", time.Since(start), status)

	return entry, err
}

// ListByDevice records metrics for per-device outbox listings.
func (o *outboxUseCaseWithMetrics) ListByDevice(
	ctx context.Context,
	deviceID string,
	limit int,
) ([]*outboxDomain.OutboxEntry, error) {
	start := time.Now()
	entries, err := o.next.ListByDevice(ctx, deviceID, limit)

	status := "success"
	if err != nil {
		status = "error"
	}

	o.metrics.RecordOperation(ctx, metricsDomain, "outbox_list", status)
	o.metrics.RecordDuration(ctx, metricsDomain, "outbox_list", time.Since(start), status)

	return entries, err
}
