// Package usecase implements the outbox publisher, the confirmation correlator and
// the outbox status queries.
package usecase

import (
	"context"
	"time"

	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
	telemetryDomain "github.com/allisson/heatpump-outbox/internal/telemetry/domain"
)

// OutboxRepository defines outbox persistence operations.
type OutboxRepository interface {
	Create(ctx context.Context, entry *outboxDomain.OutboxEntry) error
	ClaimPending(
		ctx context.Context,
		claimToken string,
		now time.Time,
		limit int,
		lease time.Duration,
	) ([]*outboxDomain.OutboxEntry, error)
	MarkPublished(ctx context.Context, id int64, claimToken string, publishedAt time.Time) error
	MarkConfirmed(ctx context.Context, id int64, confirmedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id int64, message string) (bool, error)
	// IncrementRetry records a failed attempt under the caller's claim and releases
	// it. When the new count reaches the entry's max_retries the same statement
	// moves it to failed with failureMessage, so an exhausted entry is never
	// pending and unclaimed. Returns ErrStaleClaim when the claim was lost.
	IncrementRetry(
		ctx context.Context,
		id int64,
		claimToken string,
		nextAttemptAt time.Time,
		failureMessage string,
	) (retryCount int, failed bool, err error)
	Get(ctx context.Context, id int64) (*outboxDomain.OutboxEntry, error)
	FindOpenForDevice(ctx context.Context, deviceID string, since time.Time) (*outboxDomain.OutboxEntry, error)
	FailExpiredConfirmations(ctx context.Context, cutoff time.Time, message string) (int64, error)
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*outboxDomain.OutboxEntry, error)
	CountByStatus(ctx context.Context) (map[outboxDomain.Status]int64, error)
}

// CommandPublisher sends a command to a device. Returned errors should be
// outboxDomain.PermanentPublishError when retrying cannot help; anything else is
// retried.
type CommandPublisher interface {
	Publish(ctx context.Context, cmd *outboxDomain.Command) error
}

// RetrySchedule returns how long to wait before the given retry attempt (1-based).
type RetrySchedule interface {
	Delay(attempt int) time.Duration
}

// TelemetrySource delivers device telemetry messages. Receive blocks until a
// message arrives or ctx is done.
type TelemetrySource interface {
	Receive(ctx context.Context) (*telemetryDomain.Delivery, error)
	Close() error
}

// OutboxUseCase exposes read-only outbox status.
type OutboxUseCase interface {
	GetStatus(ctx context.Context, id int64) (*outboxDomain.OutboxEntry, error)
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]*outboxDomain.OutboxEntry, error)
}
