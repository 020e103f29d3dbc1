package app

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/allisson/heatpump-outbox/internal/config"
	outboxUseCase "github.com/allisson/heatpump-outbox/internal/outbox/usecase"
	telemetryService "github.com/allisson/heatpump-outbox/internal/telemetry/service"
)

// TelemetrySource returns the telemetry transport selected by TELEMETRY_SOURCE.
// The source owns its connection and is closed by Shutdown.
func (c *Container) TelemetrySource() (outboxUseCase.TelemetrySource, error) {
	c.telemetrySourceInit.Do(func() {
		var err error
		c.telemetrySource, err = c.initTelemetrySource()
		c.setInitError("telemetrySource", err)
	})
	if err := c.initError("telemetrySource"); err != nil {
		return nil, err
	}
	return c.telemetrySource, nil
}

func (c *Container) initTelemetrySource() (outboxUseCase.TelemetrySource, error) {
	logger := c.Logger()

	switch c.config.TelemetrySource {
	case config.TelemetrySourceRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.config.TelemetryRedisAddr,
			Password: c.config.TelemetryRedisPassword,
			DB:       c.config.TelemetryRedisDB,
		})
		return telemetryService.NewRedisStreamSource(client, telemetryService.RedisStreamConfig{
			Stream:        c.config.TelemetryStream,
			ConsumerGroup: c.config.TelemetryConsumerGroup,
			ConsumerName:  c.config.TelemetryConsumerName,
		}, logger), nil
	case config.TelemetrySourcePubSub:
		source, err := telemetryService.OpenPubSubSource(context.Background(), c.config.TelemetryPubSubURL, logger)
		if err != nil {
			return nil, err
		}
		return source, nil
	default:
		return nil, fmt.Errorf("unsupported telemetry source: %s", c.config.TelemetrySource)
	}
}
