// Package service provides the telemetry transports the confirmation correlator
// consumes from.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-redis/redis/v8"
	json "github.com/goccy/go-json"

	telemetryDomain "github.com/allisson/heatpump-outbox/internal/telemetry/domain"
)

const (
	redisReadCount   = 16
	redisReadBlock   = 2 * time.Second
	redisMaxBackoff  = 30 * time.Second
	redisDataField   = "data"
	redisBusyGroup   = "BUSYGROUP"
	redisPendingFrom = "0"
	redisNewFrom     = ">"
)

// RedisStreamConfig identifies the stream and consumer group to read.
type RedisStreamConfig struct {
	Stream        string
	ConsumerGroup string
	ConsumerName  string
}

// RedisStreamSource reads telemetry from a Redis stream through a consumer group.
// Messages left unacknowledged by a previous run of the same consumer are
// delivered again, interleaved page by page with new ones.
type RedisStreamSource struct {
	client *redis.Client
	config RedisStreamConfig
	logger *slog.Logger

	mu          sync.Mutex
	groupReady  bool
	buffer      []redis.XMessage
	scanPending bool
	pendingFrom string
	backoff     *backoff.ExponentialBackOff
	now         func() time.Time
}

// NewRedisStreamSource creates a new RedisStreamSource.
func NewRedisStreamSource(client *redis.Client, config RedisStreamConfig, logger *slog.Logger) *RedisStreamSource {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = redisMaxBackoff
	return &RedisStreamSource{
		client:      client,
		config:      config,
		logger:      logger,
		scanPending: true,
		pendingFrom: redisPendingFrom,
		backoff:     b,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ensureGroup creates the consumer group on first use. Callers hold s.mu.
func (s *RedisStreamSource) ensureGroup(ctx context.Context) error {
	if s.groupReady {
		return nil
	}
	err := s.client.XGroupCreateMkStream(ctx, s.config.Stream, s.config.ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), redisBusyGroup) {
		return fmt.Errorf("failed to create consumer group %s: %w", s.config.ConsumerGroup, err)
	}
	s.groupReady = true
	return nil
}

// wait sleeps for the next backoff interval or until ctx is done.
func (s *RedisStreamSource) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.backoff.NextBackOff()):
		return nil
	}
}

// Receive returns the next stream message, blocking until one arrives or ctx is done.
// Read failures are retried after an exponential backoff and reported.
func (s *RedisStreamSource) Receive(ctx context.Context) (*telemetryDomain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureGroup(ctx); err != nil {
		if waitErr := s.wait(ctx); waitErr != nil {
			return nil, waitErr
		}
		return nil, err
	}

	for len(s.buffer) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.fill(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if waitErr := s.wait(ctx); waitErr != nil {
				return nil, waitErr
			}
			return nil, fmt.Errorf("failed to read stream %s: %w", s.config.Stream, err)
		}
		s.backoff.Reset()
	}

	msg := s.buffer[0]
	s.buffer = s.buffer[1:]
	return s.delivery(msg)
}

// fill reads the next page into the buffer. Unacknowledged entries are scanned
// one page at a time from pendingFrom, alternating with reads of new entries so a
// backlog of entries that keep failing cannot starve fresh telemetry. A scan
// starts on the first read and again whenever the stream goes idle.
func (s *RedisStreamSource) fill(ctx context.Context) error {
	if s.scanPending {
		return s.fillPending(ctx)
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.config.ConsumerGroup,
		Consumer: s.config.ConsumerName,
		Streams:  []string{s.config.Stream, redisNewFrom},
		Count:    redisReadCount,
		Block:    redisReadBlock,
	}).Result()
	// Resume an unfinished scan after every page of new entries.
	s.scanPending = s.pendingFrom != redisPendingFrom
	if errors.Is(err, redis.Nil) {
		s.scanPending = true
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		s.buffer = append(s.buffer, stream.Messages...)
	}
	return nil
}

func (s *RedisStreamSource) fillPending(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.config.ConsumerGroup,
		Consumer: s.config.ConsumerName,
		Streams:  []string{s.config.Stream, s.pendingFrom},
		Count:    redisReadCount,
		// Pending history is served immediately; a negative Block omits BLOCK.
		Block: -1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	s.scanPending = false
	read := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			read++
			s.pendingFrom = msg.ID
			s.buffer = append(s.buffer, msg)
		}
	}
	if read == 0 {
		s.pendingFrom = redisPendingFrom
	}
	return nil
}

func (s *RedisStreamSource) delivery(msg redis.XMessage) (*telemetryDomain.Delivery, error) {
	body, err := messageBody(msg.Values)
	if err != nil {
		return nil, err
	}

	id := msg.ID
	return &telemetryDomain.Delivery{
		ID:         id,
		Body:       body,
		ReceivedAt: s.entryTime(id),
		Ack: func(ctx context.Context) error {
			return s.client.XAck(ctx, s.config.Stream, s.config.ConsumerGroup, id).Err()
		},
	}, nil
}

// entryTime returns when Redis accepted the entry, read from the millisecond part
// of its ID, so redelivered entries keep their original time.
func (s *RedisStreamSource) entryTime(id string) time.Time {
	millis, _, _ := strings.Cut(id, "-")
	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil || ms <= 0 {
		return s.now()
	}
	return time.UnixMilli(ms).UTC()
}

// messageBody returns the JSON document of a stream entry: the "data" field when
// present, otherwise the entry's flat fields.
func messageBody(values map[string]any) ([]byte, error) {
	if data, ok := values[redisDataField]; ok {
		if s, ok := data.(string); ok {
			return []byte(s), nil
		}
	}
	return json.Marshal(values)
}

// Close closes the Redis client.
func (s *RedisStreamSource) Close() error {
	return s.client.Close()
}
