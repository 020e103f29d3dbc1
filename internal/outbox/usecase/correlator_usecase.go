package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/allisson/heatpump-outbox/internal/metrics"
	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
	telemetryDomain "github.com/allisson/heatpump-outbox/internal/telemetry/domain"
)

// Match outcomes reported by CorrelatorUseCase.Handle.
const (
	MatchConfirmed = "confirmed"
	MatchDuplicate = "duplicate"
	MatchUnmatched = "unmatched"
)

// CorrelatorConfig holds the confirmation correlator settings.
type CorrelatorConfig struct {
	// ConfirmationWindow is how far back a published entry may be matched.
	ConfirmationWindow time.Duration
}

// CorrelatorUseCase confirms published outbox entries from device telemetry.
type CorrelatorUseCase struct {
	config     CorrelatorConfig
	outboxRepo OutboxRepository
	source     TelemetrySource
	metrics    metrics.BusinessMetrics
	logger     *slog.Logger

	now func() time.Time
}

// NewCorrelatorUseCase creates a new CorrelatorUseCase.
func NewCorrelatorUseCase(
	config CorrelatorConfig,
	outboxRepo OutboxRepository,
	source TelemetrySource,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *CorrelatorUseCase {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &CorrelatorUseCase{
		config:     config,
		outboxRepo: outboxRepo,
		source:     source,
		metrics:    businessMetrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

const receiveMaxBackoff = 30 * time.Second

// Start consumes telemetry until ctx is done. Receive errors are logged and retried
// with exponential backoff; Start returns only when ctx is done.
func (uc *CorrelatorUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting confirmation correlator",
			slog.Duration("confirmation_window", uc.config.ConfirmationWindow),
		)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = receiveMaxBackoff

	for {
		delivery, err := uc.source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				if uc.logger != nil {
					uc.logger.Info("stopping confirmation correlator")
				}
				return ctx.Err()
			}
			wait := b.NextBackOff()
			if uc.logger != nil {
				uc.logger.Error("failed to receive telemetry",
					slog.Any("error", err),
					slog.Duration("retry_in", wait),
				)
			}
			select {
			case <-ctx.Done():
				continue
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()

		uc.process(ctx, delivery)
	}
}

// process handles one delivery and acknowledges it unless handling failed.
// Malformed messages are acknowledged so they are not redelivered forever.
func (uc *CorrelatorUseCase) process(ctx context.Context, delivery *telemetryDomain.Delivery) {
	report, err := telemetryDomain.ParseReport(delivery.Body, delivery.ReceivedAt)
	if err != nil {
		if uc.logger != nil {
			uc.logger.Warn("dropping malformed telemetry",
				slog.String("message_id", delivery.ID),
				slog.Any("error", err),
			)
		}
		uc.metrics.RecordOperation(ctx, metricsDomain, "outbox_confirm", "malformed")
		uc.ack(ctx, delivery)
		return
	}

	if _, err := uc.Handle(ctx, report); err != nil {
		if uc.logger != nil {
			uc.logger.Error("failed to correlate telemetry",
				slog.String("message_id", delivery.ID),
				slog.String("device_id", report.DeviceID),
				slog.Any("error", err),
			)
		}
		return
	}

	uc.ack(ctx, delivery)
}

func (uc *CorrelatorUseCase) ack(ctx context.Context, delivery *telemetryDomain.Delivery) {
	if delivery.Ack == nil {
		return
	}
	if err := delivery.Ack(ctx); err != nil && uc.logger != nil {
		uc.logger.Warn("failed to acknowledge telemetry",
			slog.String("message_id", delivery.ID),
			slog.Any("error", err),
		)
	}
}

// Handle matches a telemetry report against the device's open outbox entry and
// confirms it when every intended field was applied. It returns the match outcome.
func (uc *CorrelatorUseCase) Handle(ctx context.Context, report *telemetryDomain.Report) (string, error) {
	start := time.Now()

	if !report.HasSettings() {
		return MatchUnmatched, nil
	}

	entry, err := uc.candidate(ctx, report)
	if err != nil {
		uc.recordConfirm(ctx, start, "error")
		return "", err
	}
	if entry == nil || !outboxDomain.PayloadMatches(entry.Payload, report.Values) {
		uc.recordConfirm(ctx, start, MatchUnmatched)
		return MatchUnmatched, nil
	}
	// A report taken before the command went out describes the old state, even
	// when the values already happen to agree.
	if reportedBeforePublish(report, entry) {
		if uc.logger != nil {
			uc.logger.Debug("ignoring telemetry older than the published command",
				slog.Int64("outbox_id", entry.ID),
				slog.String("device_id", report.DeviceID),
				slog.Time("reported_at", report.ReportedAt),
			)
		}
		uc.recordConfirm(ctx, start, "stale")
		return MatchUnmatched, nil
	}

	confirmed, err := uc.outboxRepo.MarkConfirmed(ctx, entry.ID, uc.now())
	if err != nil {
		uc.recordConfirm(ctx, start, "error")
		return "", fmt.Errorf("confirm outbox entry %d: %w", entry.ID, err)
	}
	if !confirmed {
		uc.recordConfirm(ctx, start, MatchDuplicate)
		return MatchDuplicate, nil
	}

	uc.recordConfirm(ctx, start, MatchConfirmed)
	if uc.logger != nil {
		uc.logger.Info("outbox entry confirmed",
			slog.Int64("outbox_id", entry.ID),
			slog.String("device_id", report.DeviceID),
		)
	}
	return MatchConfirmed, nil
}

// candidate picks the entry a report can confirm: the echoed correlation id when
// present, otherwise the newest open entry of the device inside the window.
func (uc *CorrelatorUseCase) candidate(
	ctx context.Context,
	report *telemetryDomain.Report,
) (*outboxDomain.OutboxEntry, error) {
	since := uc.now().Add(-uc.config.ConfirmationWindow)

	if report.CorrelationID != nil {
		entry, err := uc.outboxRepo.Get(ctx, *report.CorrelationID)
		if errors.Is(err, outboxDomain.ErrOutboxEntryNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get outbox entry %d: %w", *report.CorrelationID, err)
		}
		if entry.AggregateID != report.DeviceID || entry.Status != outboxDomain.StatusPublished {
			return nil, nil
		}
		if entry.PublishedAt == nil || entry.PublishedAt.Before(since) {
			return nil, nil
		}
		return entry, nil
	}

	entry, err := uc.outboxRepo.FindOpenForDevice(ctx, report.DeviceID, since)
	if err != nil {
		return nil, fmt.Errorf("find open outbox entry for %s: %w", report.DeviceID, err)
	}
	return entry, nil
}

func reportedBeforePublish(report *telemetryDomain.Report, entry *outboxDomain.OutboxEntry) bool {
	return entry.PublishedAt == nil || report.ReportedAt.Before(*entry.PublishedAt)
}

func (uc *CorrelatorUseCase) recordConfirm(ctx context.Context, start time.Time, status string) {
	uc.metrics.RecordOperation(ctx, metricsDomain, "outbox_confirm", status)
	uc.metrics.RecordDuration(ctx, metricsDomain, "outbox_confirm", time.Since(start), status)
}
