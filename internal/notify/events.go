package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	commonredis "india-blood-connect/common/redis"
)

// DefaultEventStream request lifecycle stream read by the alert worker.
const DefaultEventStream = "ibc:request-events"

// streamMaxLen approximate cap on retained events.
const streamMaxLen = 10000

const (
	EventRequestCreated   = "request_created"
	EventRequestCancelled = "request_cancelled"
)

// RequestEvent lifecycle event of one blood request.
type RequestEvent struct {
	Type       string    `json:"event_type"`
	RequestID  string    `json:"request_id"`
	BloodGroup string    `json:"blood_group,omitempty"`
	State      string    `json:"state,omitempty"`
	District   string    `json:"district,omitempty"`
	At         time.Time `json:"at"`
}

// EventPublisher emits RequestEvents.
type EventPublisher interface {
	PublishRequestEvent(ctx context.Context, ev RequestEvent) error
}

// StreamPublisher writes events to a Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewStreamPublisher(client *redis.Client, stream string, logger *zap.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultEventStream
	}
	return &StreamPublisher{client: client, stream: stream, logger: logger}
}

func (p *StreamPublisher) PublishRequestEvent(ctx context.Context, ev RequestEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	id, err := commonredis.PublishJSON(ctx, p.client, p.stream, ev, streamMaxLen)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	p.logger.Debug("request event published",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("event_type", ev.Type),
		zap.String("request_id", ev.RequestID),
	)
	return nil
}

// NopEvents discards events.
type NopEvents struct{}

func (NopEvents) PublishRequestEvent(context.Context, RequestEvent) error { return nil }
