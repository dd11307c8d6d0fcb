package notify

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisBus Bus over Redis pub/sub, shared by every API replica.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, topic string) error {
	return b.client.Publish(ctx, topic, "changed").Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func()) {
	ps := b.client.Subscribe(ctx, topic)
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		b.logger.Warn("redis subscribe not confirmed", zap.String("topic", topic), zap.Error(err))
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(done) })
	}

	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, cancel
}

var _ Bus = (*RedisBus)(nil)
