package matcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/notify"
)

// DefaultInterval re-evaluation period when nothing signals a change.
const DefaultInterval = 2 * time.Second

// Source lists every open request.
type Source interface {
	ListRequests(ctx context.Context) ([]domain.BloodRequest, error)
}

// Notifier payload-free "data changed" signal.
type Notifier interface {
	Subscribe(ctx context.Context) (<-chan struct{}, func())
}

// BusNotifier adapts a notify.Bus topic to Notifier.
type BusNotifier struct {
	Bus   notify.Bus
	Topic string
}

func (n BusNotifier) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	topic := n.Topic
	if topic == "" {
		topic = notify.TopicStorage
	}
	return n.Bus.Subscribe(ctx, topic)
}

// Watcher re-runs Match for one viewer on a ticker and on change signals.
type Watcher struct {
	source   Source
	notifier Notifier
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewWatcher notifier may be nil (ticker only); interval <= 0 uses DefaultInterval.
func NewWatcher(source Source, notifier Notifier, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		source:   source,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Evaluate one-shot match for viewer. A nil viewer gets an empty snapshot.
func (w *Watcher) Evaluate(ctx context.Context, viewer *domain.Identity) (Snapshot, error) {
	snap := Snapshot{Requests: []domain.BloodRequest{}, GeneratedAt: w.now().UTC()}
	if viewer == nil {
		return snap, nil
	}
	snap.ViewerID = viewer.ID
	requests, err := w.source.ListRequests(ctx)
	if err != nil {
		return snap, err
	}
	snap.Requests = Match(requests, viewer.Location)
	return snap, nil
}

// Watch emits a snapshot on start, on every tick and on every change signal
// until ctx is done, then closes the channel. Delivery is latest-wins: a
// snapshot the consumer has not read yet is replaced by the newer one. To
// follow a different identity cancel ctx and call Watch again.
func (w *Watcher) Watch(ctx context.Context, viewer *domain.Identity) <-chan Snapshot {
	out := make(chan Snapshot, 1)

	var changes <-chan struct{}
	unsubscribe := func() {}
	if w.notifier != nil && viewer != nil {
		changes, unsubscribe = w.notifier.Subscribe(ctx)
	}

	go func() {
		defer close(out)
		defer unsubscribe()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.emit(ctx, out, viewer)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.emit(ctx, out, viewer)
			case _, ok := <-changes:
				if !ok {
					// notifier went away; keep polling
					changes = nil
					continue
				}
				w.emit(ctx, out, viewer)
			}
		}
	}()
	return out
}

func (w *Watcher) emit(ctx context.Context, out chan Snapshot, viewer *domain.Identity) {
	snap, err := w.Evaluate(ctx, viewer)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("failed to read requests, keeping previous alerts", zap.Error(err))
		}
		return
	}
	// drop the unread snapshot, if any
	select {
	case <-out:
	default:
	}
	select {
	case out <- snap:
	default:
	}
}
