package app

import (
	"context"
	"fmt"

	"github.com/allisson/heatpump-outbox/internal/database"
	"github.com/allisson/heatpump-outbox/internal/metrics"
	outboxRepository "github.com/allisson/heatpump-outbox/internal/outbox/repository"
	outboxService "github.com/allisson/heatpump-outbox/internal/outbox/service"
	outboxUseCase "github.com/allisson/heatpump-outbox/internal/outbox/usecase"
)

// OutboxRepository returns the outbox repository for the configured database driver.
func (c *Container) OutboxRepository() (OutboxStore, error) {
	c.outboxRepoInit.Do(func() {
		var err error
		c.outboxRepo, err = c.initOutboxRepository()
		c.setInitError("outboxRepo", err)
	})
	if err := c.initError("outboxRepo"); err != nil {
		return nil, err
	}
	return c.outboxRepo, nil
}

// OutboxUseCase returns the read-only outbox status use case wrapped with business metrics.
func (c *Container) OutboxUseCase() (outboxUseCase.OutboxUseCase, error) {
	c.outboxUseCaseInit.Do(func() {
		var err error
		c.outboxUseCase, err = c.initOutboxUseCase()
		c.setInitError("outboxUseCase", err)
	})
	if err := c.initError("outboxUseCase"); err != nil {
		return nil, err
	}
	return c.outboxUseCase, nil
}

// CommandPublisher returns the MQTT command publisher.
func (c *Container) CommandPublisher() (*outboxService.MQTTCommandPublisher, error) {
	c.commandPublisherInit.Do(func() {
		var err error
		c.commandPublisher, err = c.initCommandPublisher()
		c.setInitError("commandPublisher", err)
	})
	if err := c.initError("commandPublisher"); err != nil {
		return nil, err
	}
	return c.commandPublisher, nil
}

// PublisherUseCase returns the outbox publisher worker.
func (c *Container) PublisherUseCase() (*outboxUseCase.PublisherUseCase, error) {
	c.publisherUseCaseInit.Do(func() {
		var err error
		c.publisherUseCase, err = c.initPublisherUseCase()
		c.setInitError("publisherUseCase", err)
	})
	if err := c.initError("publisherUseCase"); err != nil {
		return nil, err
	}
	return c.publisherUseCase, nil
}

// CorrelatorUseCase returns the confirmation correlator worker.
func (c *Container) CorrelatorUseCase() (*outboxUseCase.CorrelatorUseCase, error) {
	c.correlatorUseCaseInit.Do(func() {
		var err error
		c.correlatorUseCase, err = c.initCorrelatorUseCase()
		c.setInitError("correlatorUseCase", err)
	})
	if err := c.initError("correlatorUseCase"); err != nil {
		return nil, err
	}
	return c.correlatorUseCase, nil
}

func (c *Container) initOutboxRepository() (OutboxStore, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverMySQL:
		return outboxRepository.NewMySQLOutboxRepository(db), nil
	case database.DriverPostgres:
		return outboxRepository.NewPostgreSQLOutboxRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initOutboxUseCase() (outboxUseCase.OutboxUseCase, error) {
	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for outbox use case: %w", err)
	}

	return outboxUseCase.NewOutboxUseCaseWithMetrics(outboxUseCase.NewOutboxUseCase(outboxRepo), businessMetrics), nil
}

func (c *Container) initCommandPublisher() (*outboxService.MQTTCommandPublisher, error) {
	publisher, err := outboxService.NewMQTTCommandPublisher(outboxService.MQTTConfig{
		BrokerURL:      c.config.MQTTBrokerURL,
		ClientID:       c.config.MQTTClientID,
		Username:       c.config.MQTTUsername,
		Password:       c.config.MQTTPassword,
		QoS:            byte(c.config.MQTTQoS),
		ConnectTimeout: c.config.OutboxPublishTimeout,
	}, c.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create mqtt command publisher: %w", err)
	}
	return publisher, nil
}

func (c *Container) initPublisherUseCase() (*outboxUseCase.PublisherUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox publisher: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox publisher: %w", err)
	}

	publisher, err := c.CommandPublisher()
	if err != nil {
		return nil, fmt.Errorf("failed to get command publisher for outbox publisher: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for outbox publisher: %w", err)
	}

	config := outboxUseCase.PublisherConfig{
		Interval:           c.config.OutboxPollInterval,
		BatchSize:          c.config.OutboxBatchSize,
		Concurrency:        c.config.OutboxPublishConcurrency,
		PublishTimeout:     c.config.OutboxPublishTimeout,
		ClaimLease:         c.config.OutboxClaimLease,
		ConfirmationWindow: c.config.OutboxConfirmationWindow,
		CommandNamespace:   c.config.MQTTCommandNamespace,
	}
	retrySchedule := outboxService.NewExponentialRetrySchedule(
		c.config.OutboxRetryInitialInterval,
		c.config.OutboxRetryMaxInterval,
	)

	return outboxUseCase.NewPublisherUseCase(
		config, txManager, outboxRepo, publisher, retrySchedule, businessMetrics, c.Logger(),
	), nil
}

func (c *Container) initCorrelatorUseCase() (*outboxUseCase.CorrelatorUseCase, error) {
	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for correlator: %w", err)
	}

	source, err := c.TelemetrySource()
	if err != nil {
		return nil, fmt.Errorf("failed to get telemetry source for correlator: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for correlator: %w", err)
	}

	config := outboxUseCase.CorrelatorConfig{
		ConfirmationWindow: c.config.OutboxConfirmationWindow,
	}
	return outboxUseCase.NewCorrelatorUseCase(config, outboxRepo, source, businessMetrics, c.Logger()), nil
}

// RegisterOutboxBacklog exposes outbox entry counts by status on the metrics
// provider. It does nothing when metrics are disabled and registers at most once.
func (c *Container) RegisterOutboxBacklog() error {
	c.outboxBacklogInit.Do(func() {
		c.setInitError("outboxBacklog", c.initOutboxBacklog())
	})
	return c.initError("outboxBacklog")
}

func (c *Container) initOutboxBacklog() error {
	provider, err := c.MetricsProvider()
	if err != nil {
		return err
	}
	if provider == nil {
		return nil
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return fmt.Errorf("failed to get outbox repository for backlog metrics: %w", err)
	}

	registration, err := metrics.RegisterOutboxBacklog(
		provider.MeterProvider(),
		c.config.MetricsNamespace,
		func(ctx context.Context) (map[string]int64, error) {
			counts, err := outboxRepo.CountByStatus(ctx)
			if err != nil {
				return nil, err
			}
			byStatus := make(map[string]int64, len(counts))
			for status, n := range counts {
				byStatus[string(status)] = n
			}
			return byStatus, nil
		},
	)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.outboxBacklog = registration
	c.mu.Unlock()
	return nil
}
