package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

// MockOutboxUseCase is a mock implementation of OutboxUseCase for testing.
type MockOutboxUseCase struct {
	mock.Mock
}

// GetStatus mocks the GetStatus method of OutboxUseCase.
func (m *MockOutboxUseCase) GetStatus(ctx context.Context, id int64) (*outboxDomain.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.OutboxEntry), args.Error(1)
}

// ListByDevice mocks the ListByDevice method of OutboxUseCase.
func (m *MockOutboxUseCase) ListByDevice(
	ctx context.Context,
	deviceID string,
	limit int,
) ([]*outboxDomain.OutboxEntry, error) {
	args := m.Called(ctx, deviceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outboxDomain.OutboxEntry), args.Error(1)
}
