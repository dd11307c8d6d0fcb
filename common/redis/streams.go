package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Stream entries carry one JSON document under dataField and the unix
// publish time under timestampField.
const (
	dataField      = "data"
	timestampField = "timestamp"
)

// StreamMessage is one entry read from a Redis stream.
type StreamMessage struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// Data the JSON document of the entry; false when the field is missing.
func (m StreamMessage) Data() ([]byte, bool) {
	s, ok := m.Values[dataField].(string)
	if !ok {
		return nil, false
	}
	return []byte(s), true
}

// PublishJSON XADDs data as JSON. maxLen > 0 caps the stream approximately
// at that many entries.
func PublishJSON(ctx context.Context, client *redis.Client, stream string, data interface{}, maxLen int64) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode stream entry: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			dataField:      string(b),
			timestampField: time.Now().Unix(),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return client.XAdd(ctx, args).Result()
}

// ReadGroup reads new messages for consumer within group, waiting at most
// block. Nothing arriving in time is an empty slice, not an error.
func ReadGroup(ctx context.Context, client *redis.Client, stream, group, consumer string, count int64, block time.Duration) ([]StreamMessage, error) {
	return readGroup(ctx, client, stream, group, consumer, ">", count, block)
}

// ReadPending returns messages already delivered to consumer but not yet
// acked, oldest first. It never blocks.
func ReadPending(ctx context.Context, client *redis.Client, stream, group, consumer string, count int64) ([]StreamMessage, error) {
	return readGroup(ctx, client, stream, group, consumer, "0", count, -1)
}

// readGroup a negative block omits BLOCK.
func readGroup(ctx context.Context, client *redis.Client, stream, group, consumer, start string, count int64, block time.Duration) ([]StreamMessage, error) {
	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, start},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var messages []StreamMessage
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, StreamMessage{Stream: s.Stream, ID: msg.ID, Values: msg.Values})
		}
	}
	return messages, nil
}

// Ack acknowledges ids in group.
func Ack(ctx context.Context, client *redis.Client, stream, group string, ids ...string) error {
	return client.XAck(ctx, stream, group, ids...).Err()
}

// EnsureGroup creates group at the start of stream, creating the stream as
// needed. An existing group is not an error.
func EnsureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}
