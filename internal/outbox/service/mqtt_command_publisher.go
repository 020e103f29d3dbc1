// Package service provides the outbox's outbound adapters.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	outboxDomain "github.com/allisson/heatpump-outbox/internal/outbox/domain"
)

// MQTTConfig holds the broker connection settings for the command publisher.
type MQTTConfig struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
}

// mqttClient is the subset of mqtt.Client the publisher uses.
type mqttClient interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTCommandPublisher delivers outbox commands to devices over MQTT.
type MQTTCommandPublisher struct {
	client mqttClient
	qos    byte
	logger *slog.Logger
}

// NewMQTTCommandPublisher connects to the broker. An unreachable broker is not an
// error: the client keeps reconnecting and publishes fail as transient meanwhile.
func NewMQTTCommandPublisher(cfg MQTTConfig, logger *slog.Logger) (*MQTTCommandPublisher, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt broker url is required")
	}
	if cfg.QoS < 1 || cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt qos must be 1 or 2, got %d", cfg.QoS)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetCleanSession(false)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		if logger != nil {
			logger.Info("connected to mqtt broker", slog.String("broker", cfg.BrokerURL))
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if logger != nil {
			logger.Warn("lost connection to mqtt broker", slog.Any("error", err))
		}
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if cfg.ConnectTimeout > 0 && token.WaitTimeout(cfg.ConnectTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}

	return newMQTTCommandPublisher(client, cfg.QoS, logger), nil
}

func newMQTTCommandPublisher(client mqttClient, qos byte, logger *slog.Logger) *MQTTCommandPublisher {
	return &MQTTCommandPublisher{client: client, qos: qos, logger: logger}
}

// Publish sends cmd and waits for the broker acknowledgement or ctx expiry.
func (p *MQTTCommandPublisher) Publish(ctx context.Context, cmd *outboxDomain.Command) error {
	if cmd.Topic == "" || strings.ContainsAny(cmd.Topic, "+#") {
		return outboxDomain.NewPermanentPublishError(fmt.Errorf("invalid topic %q", cmd.Topic))
	}
	if len(cmd.Body) == 0 {
		return outboxDomain.NewPermanentPublishError(fmt.Errorf("empty command body for entry %d", cmd.EntryID))
	}
	if !p.client.IsConnectionOpen() {
		return outboxDomain.NewTransientPublishError(mqtt.ErrNotConnected)
	}

	token := p.client.Publish(cmd.Topic, p.qos, false, cmd.Body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return outboxDomain.NewTransientPublishError(
			fmt.Errorf("publish to %s not acknowledged: %w", cmd.Topic, ctx.Err()),
		)
	}

	if err := token.Error(); err != nil {
		return outboxDomain.NewTransientPublishError(fmt.Errorf("failed to publish to %s: %w", cmd.Topic, err))
	}

	if p.logger != nil {
		p.logger.Debug("command published",
			slog.String("topic", cmd.Topic),
			slog.Int64("outbox_id", cmd.EntryID),
		)
	}
	return nil
}

// Close disconnects from the broker, waiting briefly for in-flight work.
func (p *MQTTCommandPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
