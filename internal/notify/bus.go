package notify

import (
	"context"
	"sync"
)

// TopicStorage generic "storage changed" signal. Carries no payload; listeners
// re-read whatever they display.
const TopicStorage = "indiaBloodConnect:storage"

// Publisher emits a change signal on topic.
type Publisher interface {
	Publish(ctx context.Context, topic string) error
}

// Bus publish/subscribe for change signals. Subscribe returns a channel that
// receives at least one value after every Publish that happened while
// subscribed; bursts may coalesce into one value. The returned cancel func
// (or ctx being done) closes the channel.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, topic string) (<-chan struct{}, func())
}

// Nop drops every signal.
type Nop struct{}

func (Nop) Publish(context.Context, string) error { return nil }

// LocalBus in-process Bus.
type LocalBus struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan struct{}
	once sync.Once
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[*subscriber]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs[topic] {
		select {
		case s.ch <- struct{}{}:
		default:
			// a signal is already pending
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, topic string) (<-chan struct{}, func()) {
	s := &subscriber{ch: make(chan struct{}, 1)}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscriber]struct{})
	}
	b.subs[topic][s] = struct{}{}
	b.mu.Unlock()

	done := make(chan struct{})
	cancel := func() {
		s.once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], s)
			close(s.ch)
			b.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return s.ch, cancel
}

var _ Bus = (*LocalBus)(nil)
