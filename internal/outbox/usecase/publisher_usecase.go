package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/allisson/heatpump-outbox/internal/database"
	"github.com/allisson/heatpump-outbox/internal/metrics"
	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

const metricsDomain = "outbox"

// PublisherConfig holds the outbox publisher settings.
type PublisherConfig struct {
	// Interval is the time between ticks.
	Interval time.Duration
	// BatchSize is the maximum number of entries claimed per tick.
	BatchSize int
	// Concurrency is the number of entries of a batch published in parallel.
	Concurrency int
	// PublishTimeout bounds a single publish attempt.
	PublishTimeout time.Duration
	// ClaimLease is how long a claim stays exclusive.
	ClaimLease time.Duration
	// ConfirmationWindow is how long a published entry may wait for confirmation.
	ConfirmationWindow time.Duration
	// CommandNamespace is the first segment of command topics.
	CommandNamespace string
}

// PublisherUseCase claims pending outbox entries and sends them to devices.
type PublisherUseCase struct {
	config        PublisherConfig
	txManager     database.TxManager
	outboxRepo    OutboxRepository
	publisher     CommandPublisher
	retrySchedule RetrySchedule
	metrics       metrics.BusinessMetrics
	logger        *slog.Logger

	now           func() time.Time
	newClaimToken func() string
}

// NewPublisherUseCase creates a new PublisherUseCase.
func NewPublisherUseCase(
	config PublisherConfig,
	txManager database.TxManager,
	outboxRepo OutboxRepository,
	publisher CommandPublisher,
	retrySchedule RetrySchedule,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *PublisherUseCase {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &PublisherUseCase{
		config:        config,
		txManager:     txManager,
		outboxRepo:    outboxRepo,
		publisher:     publisher,
		retrySchedule: retrySchedule,
		metrics:       businessMetrics,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
		newClaimToken: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// Start runs a tick every Interval until ctx is done.
func (uc *PublisherUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting outbox publisher",
			slog.Duration("interval", uc.config.Interval),
			slog.Int("batch_size", uc.config.BatchSize),
			slog.Int("concurrency", uc.config.Concurrency),
		)
	}

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if uc.logger != nil {
				uc.logger.Info("stopping outbox publisher")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := uc.Tick(ctx); err != nil {
				if uc.logger != nil {
					uc.logger.Error("outbox publisher tick failed", slog.Any("error", err))
				}
			}
		}
	}
}

// Tick fails expired confirmations, claims a batch of pending entries and
// publishes each of them once.
func (uc *PublisherUseCase) Tick(ctx context.Context) error {
	uc.SweepExpiredConfirmations(ctx)

	claimToken := uc.newClaimToken()
	claimedAt := uc.now()
	var entries []*outboxDomain.OutboxEntry
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		entries, err = uc.outboxRepo.ClaimPending(
			ctx, claimToken, claimedAt, uc.config.BatchSize, uc.config.ClaimLease,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("claim pending outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	if uc.logger != nil {
		uc.logger.Debug("claimed outbox entries",
			slog.Int("count", len(entries)),
			slog.String("claim_token", claimToken),
		)
	}

	leaseDeadline := claimedAt.Add(uc.config.ClaimLease)
	p := pool.New().WithMaxGoroutines(uc.config.Concurrency)
	for _, entry := range entries {
		p.Go(func() {
			uc.publishEntry(ctx, entry, claimToken, leaseDeadline)
		})
	}
	p.Wait()

	return nil
}

// SweepExpiredConfirmations fails published entries whose confirmation window has
// passed. Errors are logged; the next tick tries again.
func (uc *PublisherUseCase) SweepExpiredConfirmations(ctx context.Context) {
	cutoff := uc.now().Add(-uc.config.ConfirmationWindow)

	count, err := uc.outboxRepo.FailExpiredConfirmations(ctx, cutoff, outboxDomain.FailureConfirmationTimeout)
	if err != nil {
		uc.metrics.RecordOperation(ctx, metricsDomain, "outbox_sweep", "error")
		if uc.logger != nil {
			uc.logger.Error("failed to sweep expired confirmations", slog.Any("error", err))
		}
		return
	}
	if count == 0 {
		return
	}

	uc.metrics.RecordOperation(ctx, metricsDomain, "outbox_sweep", "timeout")
	if uc.logger != nil {
		uc.logger.Warn("outbox entries timed out waiting for confirmation",
			slog.Int64("count", count),
			slog.Time("cutoff", cutoff),
		)
	}
}

func (uc *PublisherUseCase) publishEntry(
	ctx context.Context,
	entry *outboxDomain.OutboxEntry,
	claimToken string,
	leaseDeadline time.Time,
) {
	start := time.Now()
	logger := uc.entryLogger(entry)

	// An attempt that could outlive the claim would race a replica that re-claims
	// the entry, so the entry is left for a later tick instead.
	if uc.now().Add(uc.config.PublishTimeout).After(leaseDeadline) {
		uc.recordPublish(ctx, start, "lease_expired")
		if logger != nil {
			logger.Warn("outbox claim lease too short for another attempt, leaving entry for a later tick",
				slog.Time("lease_deadline", leaseDeadline),
			)
		}
		return
	}

	err := uc.send(ctx, entry)

	// Bookkeeping must survive shutdown once the command has left the process.
	writeCtx := context.WithoutCancel(ctx)

	switch {
	case err == nil:
		err := uc.outboxRepo.MarkPublished(writeCtx, entry.ID, claimToken, uc.now())
		uc.recordPublish(ctx, start, markStatus(err, "published"))
		if err != nil {
			uc.logMarkError(logger, "published", err)
			return
		}
		if logger != nil {
			logger.Info("outbox entry published")
		}

	case ctx.Err() != nil:
		// Shutdown interrupted the attempt; the claim lease expires and another tick retries.
		uc.recordPublish(ctx, start, "interrupted")
		if logger != nil {
			logger.Warn("outbox publish interrupted", slog.Any("error", err))
		}

	case outboxDomain.IsPermanentPublishError(err):
		uc.fail(writeCtx, entry, err.Error(), logger)
		uc.recordPublish(ctx, start, "failed")

	default:
		uc.recordPublish(ctx, start, uc.retry(writeCtx, entry, claimToken, err, logger))
	}
}

func (uc *PublisherUseCase) send(ctx context.Context, entry *outboxDomain.OutboxEntry) error {
	cmd, err := outboxDomain.NewCommand(uc.config.CommandNamespace, entry)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, uc.config.PublishTimeout)
	defer cancel()

	return uc.publisher.Publish(publishCtx, cmd)
}

func (uc *PublisherUseCase) retry(
	ctx context.Context,
	entry *outboxDomain.OutboxEntry,
	claimToken string,
	cause error,
	logger *slog.Logger,
) string {
	nextAttemptAt := uc.now().Add(uc.retrySchedule.Delay(entry.RetryCount + 1))
	failureMessage := fmt.Sprintf("%s: %v", outboxDomain.FailureRetriesExhausted, cause)

	var (
		retryCount int
		failed     bool
	)
	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		retryCount, failed, err = uc.outboxRepo.IncrementRetry(ctx, entry.ID, claimToken, nextAttemptAt, failureMessage)
		return err
	})
	if err != nil {
		uc.logMarkError(logger, "retried", err)
		return markStatus(err, "retry")
	}

	if failed {
		if logger != nil {
			logger.Error("outbox entry failed",
				slog.String("reason", failureMessage),
				slog.Int("retry_count", retryCount),
			)
		}
		return "failed"
	}

	if logger != nil {
		logger.Warn("outbox publish failed, will retry",
			slog.Int("retry_count", retryCount),
			slog.Time("next_attempt_at", nextAttemptAt),
			slog.Any("error", cause),
		)
	}
	return "retry"
}

func (uc *PublisherUseCase) fail(
	ctx context.Context,
	entry *outboxDomain.OutboxEntry,
	message string,
	logger *slog.Logger,
) {
	failed, err := uc.outboxRepo.MarkFailed(ctx, entry.ID, message)
	if err != nil {
		uc.logMarkError(logger, "failed", err)
		return
	}
	if logger != nil && failed {
		logger.Error("outbox entry failed", slog.String("reason", message))
	}
}

func (uc *PublisherUseCase) recordPublish(ctx context.Context, start time.Time, status string) {
	uc.metrics.RecordOperation(ctx, metricsDomain, "outbox_publish", status)
	uc.metrics.RecordDuration(ctx, metricsDomain, "outbox_publish", time.Since(start), status)
}

func (uc *PublisherUseCase) logMarkError(logger *slog.Logger, state string, err error) {
	if logger == nil {
		return
	}
	if errors.Is(err, outboxDomain.ErrStaleClaim) {
		logger.Warn("outbox claim lost before entry could be marked "+state, slog.Any("error", err))
		return
	}
	logger.Error("failed to mark outbox entry "+state, slog.Any("error", err))
}

func (uc *PublisherUseCase) entryLogger(entry *outboxDomain.OutboxEntry) *slog.Logger {
	if uc.logger == nil {
		return nil
	}
	return uc.logger.With(
		slog.Int64("outbox_id", entry.ID),
		slog.String("device_id", entry.AggregateID),
	)
}

func markStatus(err error, success string) string {
	switch {
	case err == nil:
		return success
	case errors.Is(err, outboxDomain.ErrStaleClaim):
		return "stale"
	default:
		return "error"
	}
}
