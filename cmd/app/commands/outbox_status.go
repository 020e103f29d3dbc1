package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"

	outboxUseCase "github.com/allisson/heatpump-outbox/internal/outbox/usecase"
	"github.com/allisson/heatpump-outbox/internal/settings/http/dto"
)

// RunOutboxStatus prints the delivery status of one outbox entry.
func RunOutboxStatus(
	ctx context.Context,
	useCase outboxUseCase.OutboxUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id int64,
	format string,
) error {
	if id <= 0 {
		return fmt.Errorf("id must be a positive number, got: %d", id)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	entry, err := useCase.GetStatus(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get outbox status: %w", err)
	}

	response := dto.MapOutboxEntryToResponse(entry)
	logger.Debug("outbox status loaded", slog.Int64("outbox_id", id), slog.String("status", string(entry.Status)))

	if format == FormatJSON {
		return outputStatusJSON(writer, response)
	}
	outputStatusText(writer, response)
	return nil
}

func outputStatusText(w io.Writer, r dto.OutboxStatusResponse) {
	_, _ = fmt.Fprintf(w, "ID:           %d\n", r.ID)
	_, _ = fmt.Fprintf(w, "Device:       %s\n", r.DeviceID)
	_, _ = fmt.Fprintf(w, "Status:       %s\n", r.Status)
	_, _ = fmt.Fprintf(w, "Created:      %s\n", r.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Published:    %s\n", formatOptionalTime(r.PublishedAt))
	_, _ = fmt.Fprintf(w, "Confirmed:    %s\n", formatOptionalTime(r.ConfirmedAt))
	_, _ = fmt.Fprintf(w, "Retries:      %d\n", r.RetryCount)
	if r.ErrorMessage != nil {
		_, _ = fmt.Fprintf(w, "Error:        %s\n", *r.ErrorMessage)
	}
}

func outputStatusJSON(w io.Writer, r dto.OutboxStatusResponse) error {
	jsonBytes, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonBytes))
	return err
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
