package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	commonredis "india-blood-connect/common/redis"
	"india-blood-connect/internal/notify"
)

// EventHandler processes one request event.
type EventHandler func(ctx context.Context, ev notify.RequestEvent) error

var errMalformedEvent = errors.New("malformed request event")

// RequestEventConsumer reads request lifecycle events through a consumer group.
type RequestEventConsumer struct {
	client       *redis.Client
	handler      EventHandler
	logger       *zap.Logger
	stream       string
	groupName    string
	consumerName string
	batchSize    int64
	block        time.Duration
	retryDelay   time.Duration

	// backlog is set while this consumer may own unacked messages; they are
	// re-read from the group's pending list once retryAt has passed.
	backlog bool
	retryAt time.Time
}

func NewRequestEventConsumer(
	client *redis.Client,
	handler EventHandler,
	logger *zap.Logger,
	stream string,
	groupName string,
	consumerName string,
	batchSize int64,
) *RequestEventConsumer {
	if stream == "" {
		stream = notify.DefaultEventStream
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &RequestEventConsumer{
		client:       client,
		handler:      handler,
		logger:       logger,
		stream:       stream,
		groupName:    groupName,
		consumerName: consumerName,
		batchSize:    batchSize,
		block:        2 * time.Second,
		retryDelay:   5 * time.Second,
	}
}

// Start consumes until ctx is done. Read failures back off exponentially
// from 1s up to 30s.
func (c *RequestEventConsumer) Start(ctx context.Context) error {
	if err := commonredis.EnsureGroup(ctx, c.client, c.stream, c.groupName); err != nil {
		return err
	}

	c.logger.Info("Request event consumer started",
		zap.String("stream", c.stream),
		zap.String("consumer_group", c.groupName),
		zap.String("consumer_name", c.consumerName),
	)

	c.backlog, c.retryAt = true, time.Time{}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume events", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
	}
}

// consume one batch. A handler error leaves the message pending and
// schedules a re-read of the pending list after retryDelay; malformed
// messages are acked so they do not stay pending forever.
func (c *RequestEventConsumer) consume(ctx context.Context) error {
	retrying := c.backlog && !time.Now().Before(c.retryAt)

	var messages []commonredis.StreamMessage
	var err error
	if retrying {
		messages, err = commonredis.ReadPending(ctx, c.client, c.stream, c.groupName, c.consumerName, c.batchSize)
	} else {
		messages, err = commonredis.ReadGroup(ctx, c.client, c.stream, c.groupName, c.consumerName, c.batchSize, c.block)
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}
	if retrying && len(messages) == 0 {
		c.backlog = false
		return nil
	}

	failed := false
	for _, msg := range messages {
		ev, err := parseEvent(msg)
		if err == nil {
			err = c.handler(ctx, ev)
		}
		if err != nil && !errors.Is(err, errMalformedEvent) {
			failed = true
			c.logger.Error("Failed to process event",
				zap.String("message_id", msg.ID),
				zap.Bool("retry", retrying),
				zap.Error(err),
			)
			continue
		}
		if err != nil {
			c.logger.Warn("Dropping event", zap.String("message_id", msg.ID), zap.Error(err))
		}
		if err := commonredis.Ack(ctx, c.client, c.stream, c.groupName, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	if failed {
		c.backlog = true
		c.retryAt = time.Now().Add(c.retryDelay)
	}
	return nil
}

func parseEvent(msg commonredis.StreamMessage) (notify.RequestEvent, error) {
	var ev notify.RequestEvent
	data, ok := msg.Data()
	if !ok {
		return ev, fmt.Errorf("%w: no data field", errMalformedEvent)
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if ev.Type == "" {
		return ev, fmt.Errorf("%w: missing event_type", errMalformedEvent)
	}
	return ev, nil
}
