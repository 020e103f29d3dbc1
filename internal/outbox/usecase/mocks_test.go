package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
	telemetryDomain "github.com/allisson/heatpump-outbox/internal/telemetry/domain"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// MockOutboxRepository is a mock implementation of OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, entry *outboxDomain.OutboxEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockOutboxRepository) ClaimPending(
	ctx context.Context,
	claimToken string,
	now time.Time,
	limit int,
	lease time.Duration,
) ([]*outboxDomain.OutboxEntry, error) {
	args := m.Called(ctx, claimToken, now, limit, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outboxDomain.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) MarkPublished(
	ctx context.Context,
	id int64,
	claimToken string,
	publishedAt time.Time,
) error {
	args := m.Called(ctx, id, claimToken, publishedAt)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkConfirmed(ctx context.Context, id int64, confirmedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, confirmedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id int64, message string) (bool, error) {
	args := m.Called(ctx, id, message)
	return args.Bool(0), args.Error(1)
}

func (m *MockOutboxRepository) IncrementRetry(
	ctx context.Context,
	id int64,
	claimToken string,
	nextAttemptAt time.Time,
	failureMessage string,
) (int, bool, error) {
	args := m.Called(ctx, id, claimToken, nextAttemptAt, failureMessage)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockOutboxRepository) Get(ctx context.Context, id int64) (*outboxDomain.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) FindOpenForDevice(
	ctx context.Context,
	deviceID string,
	since time.Time,
) (*outboxDomain.OutboxEntry, error) {
	args := m.Called(ctx, deviceID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.OutboxEntry), args.Error(1)
}

func (m *MockOutboxRepository) FailExpiredConfirmations(
	ctx context.Context,
	cutoff time.Time,
	message string,
) (int64, error) {
	args := m.Called(ctx, cutoff, message)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepository) ListByDevice(
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

func (m *MockOutboxRepository) CountByStatus(ctx context.Context) (map[outboxDomain.Status]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[outboxDomain.Status]int64), args.Error(1)
}

// MockCommandPublisher is a mock implementation of CommandPublisher
type MockCommandPublisher struct {
	mock.Mock
}

func (m *MockCommandPublisher) Publish(ctx context.Context, cmd *outboxDomain.Command) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

// MockRetrySchedule is a mock implementation of RetrySchedule
type MockRetrySchedule struct {
	mock.Mock
}

func (m *MockRetrySchedule) Delay(attempt int) time.Duration {
	args := m.Called(attempt)
	return args.Get(0).(time.Duration)
}

// MockOutboxUseCase is a mock implementation of OutboxUseCase
type MockOutboxUseCase struct {
	mock.Mock
}

func (m *MockOutboxUseCase) GetStatus(ctx context.Context, id int64) (*outboxDomain.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.OutboxEntry), args.Error(1)
}

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

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

// chanTelemetrySource delivers queued messages and then blocks until ctx is done.
type chanTelemetrySource struct {
	deliveries chan *telemetryDomain.Delivery
}

func newChanTelemetrySource(deliveries ...*telemetryDomain.Delivery) *chanTelemetrySource {
	ch := make(chan *telemetryDomain.Delivery, len(deliveries))
	for _, d := range deliveries {
		ch <- d
	}
	return &chanTelemetrySource{deliveries: ch}
}

func (s *chanTelemetrySource) Receive(ctx context.Context) (*telemetryDomain.Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case d := <-s.deliveries:
		return d, nil
	}
}

func (s *chanTelemetrySource) Close() error {
	return nil
}
