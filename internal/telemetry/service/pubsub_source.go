package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/kafkapubsub"
	_ "gocloud.dev/pubsub/mempubsub"

	telemetryDomain "github.com/allisson/heatpump-outbox/internal/telemetry/domain"
)

// PubSubSource reads telemetry from a gocloud.dev subscription, such as a Kafka
// consumer group (kafka://group?topic=name) or an in-process topic (mem://name).
type PubSubSource struct {
	subscription *pubsub.Subscription
	logger       *slog.Logger
	now          func() time.Time
}

// OpenPubSubSource opens the subscription at url.
func OpenPubSubSource(ctx context.Context, url string, logger *slog.Logger) (*PubSubSource, error) {
	sub, err := pubsub.OpenSubscription(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry subscription: %w", err)
	}
	return NewPubSubSource(sub, logger), nil
}

// NewPubSubSource creates a PubSubSource from an open subscription.
func NewPubSubSource(subscription *pubsub.Subscription, logger *slog.Logger) *PubSubSource {
	return &PubSubSource{
		subscription: subscription,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Receive blocks until the next message arrives or ctx is done.
func (s *PubSubSource) Receive(ctx context.Context) (*telemetryDomain.Delivery, error) {
	msg, err := s.subscription.Receive(ctx)
	if err != nil {
		return nil, err
	}

	return &telemetryDomain.Delivery{
		ID:         msg.LoggableID,
		Body:       msg.Body,
		ReceivedAt: s.now(),
		Ack: func(context.Context) error {
			msg.Ack()
			return nil
		},
	}, nil
}

// Close shuts the subscription down.
func (s *PubSubSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.subscription.Shutdown(ctx)
}
