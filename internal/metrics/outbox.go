package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BacklogFunc returns the number of outbox entries per status.
type BacklogFunc func(ctx context.Context) (map[string]int64, error)

// RegisterOutboxBacklog exposes the outbox entry count per status as a gauge.
// count runs on every scrape; a failed count skips that observation.
// Call Unregister on the returned registration to stop observing.
func RegisterOutboxBacklog(
	meterProvider metric.MeterProvider,
	namespace string,
	count BacklogFunc,
) (metric.Registration, error) {
	meter := meterProvider.Meter(namespace)

	gauge, err := meter.Int64ObservableGauge(
		fmt.Sprintf("%s_outbox_entries", namespace),
		metric.WithDescription("Number of outbox entries by status"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox backlog gauge: %w", err)
	}

	registration, err := meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		counts, err := count(ctx)
		if err != nil {
			return err
		}
		for status, n := range counts {
			o.ObserveInt64(gauge, n, metric.WithAttributes(attribute.String("status", status)))
		}
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("failed to register outbox backlog callback: %w", err)
	}

	return registration, nil
}
