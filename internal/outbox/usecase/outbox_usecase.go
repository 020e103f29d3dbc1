package usecase

import (
	"context"

	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

type outboxUseCase struct {
	outboxRepo OutboxRepository
}

// NewOutboxUseCase creates the read-only outbox status use case.
func NewOutboxUseCase(outboxRepo OutboxRepository) OutboxUseCase {
	return &outboxUseCase{outboxRepo: outboxRepo}
}

// GetStatus returns the current state of an outbox entry.
func (o *outboxUseCase) GetStatus(ctx context.Context, id int64) (*outboxDomain.OutboxEntry, error) {
	return o.outboxRepo.Get(ctx, id)
}

// ListByDevice returns the most recent entries of a device, newest first.
func (o *outboxUseCase) ListByDevice(
	ctx context.Context,
	deviceID string,
	limit int,
) ([]*outboxDomain.OutboxEntry, error) {
	return o.outboxRepo.ListByDevice(ctx, deviceID, limit)
}
