package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

func TestOutboxUseCase_GetStatus(t *testing.T) {
	repo := &MockOutboxRepository{}
	uc := NewOutboxUseCase(repo)
	entry := pendingEntry(1, "hp-1")

	repo.On("Get", mock.Anything, int64(1)).Return(entry, nil).Once()
	repo.On("Get", mock.Anything, int64(2)).Return(nil, outboxDomain.ErrOutboxEntryNotFound).Once()

	got, err := uc.GetStatus(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, entry, got)

	got, err = uc.GetStatus(context.Background(), 2)
	assert.ErrorIs(t, err, outboxDomain.ErrOutboxEntryNotFound)
	assert.Nil(t, got)
}

func TestOutboxUseCase_ListByDevice(t *testing.T) {
	repo := newMemoryOutboxRepository()
	uc := NewOutboxUseCase(repo)

	for i := 0; i < 3; i++ {
		assert.NoError(t, repo.Create(context.Background(), pendingEntry(0, "hp-1")))
	}
	assert.NoError(t, repo.Create(context.Background(), pendingEntry(0, "hp-2")))

	entries, err := uc.ListByDevice(context.Background(), "hp-1", 2)

	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(3), entries[0].ID)
	assert.Equal(t, int64(2), entries[1].ID)
}

func TestOutboxUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("GetStatus success", func(t *testing.T) {
		next := &MockOutboxUseCase{}
		metricsMock := &mockBusinessMetrics{}
		uc := NewOutboxUseCaseWithMetrics(next, metricsMock)
		entry := pendingEntry(1, "hp-1")

		next.On("GetStatus", ctx, int64(1)).Return(entry, nil).Once()
		metricsMock.On("RecordOperation", ctx, "outbox", "outbox_get", "success").Return().Once()
		metricsMock.On("RecordDuration", ctx, "outbox", "outbox_get", mock.AnythingOfType("time.Duration"), "success").
			Return().
			Once()

		got, err := uc.GetStatus(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, entry, got)
		metricsMock.AssertExpectations(t)
	})

	t.Run("ListByDevice error", func(t *testing.T) {
		next := &MockOutboxUseCase{}
		metricsMock := &mockBusinessMetrics{}
		uc := NewOutboxUseCaseWithMetrics(next, metricsMock)

		next.On("ListByDevice", ctx, "hp-1", 10).Return(nil, errors.New("db down")).Once()
		metricsMock.On("RecordOperation", ctx, "outbox", "outbox_list", "error").Return().Once()
		metricsMock.On("RecordDuration", ctx, "outbox", "outbox_list", mock.AnythingOfType("time.Duration"), "error").
			Return().
			Once()

		got, err := uc.ListByDevice(ctx, "hp-1", 10)
		assert.Error(t, err)
		assert.Nil(t, got)
		metricsMock.AssertExpectations(t)
	})
}
