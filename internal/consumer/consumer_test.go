package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	commonredis "india-blood-connect/common/redis"
	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/matcher"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/repository"
	"india-blood-connect/internal/store"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	fail bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.msgs = append(p.msgs, published{topic, qos, retained, payload})
	return nil
}

func (p *fakePublisher) setFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

type fixture struct {
	client *redis.Client
	repos  *repository.Repos
	kv     store.KV
	pub    *fakePublisher
	fanout *AlertFanout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zap.NewNop()
	repos := repository.NewDirectoryRepos(store.NewDirectory(client, notify.Nop{}, logger), logger)
	_, err := repository.Seed(context.Background(), repos, logger)
	require.NoError(t, err)

	kv := store.NewRedisKV(client)
	pub := &fakePublisher{}
	return &fixture{
		client: client,
		repos:  repos,
		kv:     kv,
		pub:    pub,
		fanout: NewAlertFanout(repos, kv, pub, FanoutOptions{QoS: 1}, logger),
	}
}

func (f *fixture) addRequest(t *testing.T, id string, loc domain.Location) {
	t.Helper()
	require.NoError(t, f.repos.Requests.CreateRequest(context.Background(), &domain.BloodRequest{
		ID: id, PatientName: "P " + id, BloodGroup: domain.ONeg, Location: loc,
		Address: "General Hospital", Timestamp: time.Now().UTC(), ContactMobile: "9000000000",
	}))
}

func (f *fixture) cached(t *testing.T, identityID string) matcher.Snapshot {
	t.Helper()
	raw, err := f.kv.Get(context.Background(), f.fanout.CacheKey(identityID))
	require.NoError(t, err)
	var snap matcher.Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))
	return snap
}

func TestAlertFanout_OnlyChangedIdentities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addRequest(t, "REQ-1", domain.Location{State: "Maharashtra", District: "Pune", City: "Pune"})

	res, err := f.fanout.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Identities)
	assert.Equal(t, 7, res.Changed, "first pass delivers everyone")
	assert.Equal(t, 7, f.pub.count())

	assert.Len(t, f.cached(t, "IBC-SEED00001").Requests, 1, "Maharashtra donor")
	assert.Len(t, f.cached(t, "BB-SEED00001").Requests, 1, "Maharashtra bank")
	assert.Empty(t, f.cached(t, "IBC-SEED00004").Requests, "Telangana donor")

	f.pub.mu.Lock()
	first := f.pub.msgs[0]
	f.pub.mu.Unlock()
	assert.True(t, first.retained)
	assert.Equal(t, byte(1), first.qos)
	assert.Contains(t, first.topic, "ibc/alerts/")

	res, err = f.fanout.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Changed)
	assert.Equal(t, 7, f.pub.count())

	f.addRequest(t, "REQ-2", domain.Location{State: "Telangana", District: "Siddipet", City: "Siddipet"})
	res, err = f.fanout.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Changed)
	assert.Len(t, f.cached(t, "IBC-SEED00005").Requests, 1)
}

func TestAlertFanout_RetriesFailedDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pub.fail = true

	res, err := f.fanout.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Failed)
	assert.Zero(t, res.Changed)

	f.pub.fail = false
	res, err = f.fanout.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Changed)
}

func TestAlertFanout_WithoutPublisher(t *testing.T) {
	f := newFixture(t)
	fanout := NewAlertFanout(f.repos, f.kv, nil, FanoutOptions{CachePrefix: "test:alerts:"}, zap.NewNop())

	res, err := fanout.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Changed)
	_, err = f.kv.Get(context.Background(), "test:alerts:IBC-SEED00002")
	assert.NoError(t, err)
}

func startConsumer(t *testing.T, c *RequestEventConsumer) context.CancelFunc {
	t.Helper()
	c.block = 50 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Start(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func pending(t *testing.T, client *redis.Client, group string) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), notify.DefaultEventStream, group).Result()
	require.NoError(t, err)
	return p.Count
}

func TestRequestEventConsumer_HandlesAndAcks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []notify.RequestEvent
	handler := func(_ context.Context, ev notify.RequestEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
		return nil
	}
	c := NewRequestEventConsumer(f.client, handler, zap.NewNop(), "", "g1", "c1", 10)
	stop := startConsumer(t, c)

	pub := notify.NewStreamPublisher(f.client, "", zap.NewNop())
	require.NoError(t, pub.PublishRequestEvent(ctx, notify.RequestEvent{Type: notify.EventRequestCreated, RequestID: "REQ-9"}))
	err := f.client.XAdd(ctx, &redis.XAddArgs{Stream: notify.DefaultEventStream, Values: map[string]interface{}{"junk": "x"}}).Err()
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return pending(t, f.client, "g1") == 0 }, 3*time.Second, 20*time.Millisecond)
	stop()

	mu.Lock()
	assert.Equal(t, "REQ-9", got[0].RequestID)
	mu.Unlock()
}

func TestRequestEventConsumer_FailureStaysPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	calls := make(chan struct{}, 1)
	handler := func(context.Context, notify.RequestEvent) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return errors.New("downstream unavailable")
	}
	c := NewRequestEventConsumer(f.client, handler, zap.NewNop(), "", "g2", "c1", 10)
	c.retryDelay = time.Hour
	stop := startConsumer(t, c)

	pub := notify.NewStreamPublisher(f.client, "", zap.NewNop())
	require.NoError(t, pub.PublishRequestEvent(ctx, notify.RequestEvent{Type: notify.EventRequestCancelled, RequestID: "REQ-1"}))

	select {
	case <-calls:
	case <-time.After(3 * time.Second):
		t.Fatal("handler not called")
	}
	stop()
	assert.Equal(t, int64(1), pending(t, f.client, "g2"))
}

func TestRequestEventConsumer_RetriesPendingWithoutNewEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	calls := 0
	handler := func(context.Context, notify.RequestEvent) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return errors.New("downstream unavailable")
		}
		return nil
	}
	c := NewRequestEventConsumer(f.client, handler, zap.NewNop(), "", "g4", "c1", 10)
	c.retryDelay = 20 * time.Millisecond
	stop := startConsumer(t, c)
	defer stop()

	pub := notify.NewStreamPublisher(f.client, "", zap.NewNop())
	require.NoError(t, pub.PublishRequestEvent(ctx, notify.RequestEvent{Type: notify.EventRequestCreated, RequestID: "REQ-2"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return pending(t, f.client, "g4") == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestRequestEventConsumer_PendingReadOnStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, commonredis.EnsureGroup(ctx, f.client, notify.DefaultEventStream, "g5"))
	pub := notify.NewStreamPublisher(f.client, "", zap.NewNop())
	require.NoError(t, pub.PublishRequestEvent(ctx, notify.RequestEvent{Type: notify.EventRequestCreated, RequestID: "REQ-3"}))
	// delivered to c1 by an earlier run that never acked
	msgs, err := commonredis.ReadGroup(ctx, f.client, notify.DefaultEventStream, "g5", "c1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	got := make(chan string, 1)
	handler := func(_ context.Context, ev notify.RequestEvent) error {
		select {
		case got <- ev.RequestID:
		default:
		}
		return nil
	}
	stop := startConsumer(t, NewRequestEventConsumer(f.client, handler, zap.NewNop(), "", "g5", "c1", 10))
	defer stop()

	select {
	case id := <-got:
		assert.Equal(t, "REQ-3", id)
	case <-time.After(3 * time.Second):
		t.Fatal("pending event not redelivered")
	}
	assert.Eventually(t, func() bool { return pending(t, f.client, "g5") == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestRequestEventConsumer_FanoutRetriesFailedPublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pub.setFail(true)

	c := NewRequestEventConsumer(f.client, f.fanout.HandleEvent, zap.NewNop(), "", "g6", "c1", 10)
	c.retryDelay = 20 * time.Millisecond
	stop := startConsumer(t, c)
	defer stop()

	pub := notify.NewStreamPublisher(f.client, "", zap.NewNop())
	require.NoError(t, pub.PublishRequestEvent(ctx, notify.RequestEvent{Type: notify.EventRequestCreated, RequestID: "REQ-4"}))

	// the cache is written before the publish fails
	assert.Eventually(t, func() bool {
		_, err := f.kv.Get(ctx, f.fanout.CacheKey("BB-SEED00002"))
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), pending(t, f.client, "g6"))

	f.pub.setFail(false)
	assert.Eventually(t, func() bool { return f.pub.count() == 7 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return pending(t, f.client, "g6") == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestAlertFanout_HandleEventReportsFailures(t *testing.T) {
	f := newFixture(t)
	f.pub.setFail(true)
	err := f.fanout.HandleEvent(context.Background(), notify.RequestEvent{Type: notify.EventRequestCreated})
	assert.ErrorIs(t, err, ErrPartialDelivery)

	f.pub.setFail(false)
	assert.NoError(t, f.fanout.HandleEvent(context.Background(), notify.RequestEvent{Type: notify.EventRequestCreated}))
}

func TestRequestEventConsumer_DrivesFanout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := NewRequestEventConsumer(f.client, f.fanout.HandleEvent, zap.NewNop(), "", "g3", "c1", 10)
	stop := startConsumer(t, c)
	defer stop()

	f.addRequest(t, "REQ-5", domain.Location{State: "Karnataka", District: "Bengaluru Urban", City: "Bangalore"})
	pub := notify.NewStreamPublisher(f.client, "", zap.NewNop())
	require.NoError(t, pub.PublishRequestEvent(ctx, notify.RequestEvent{Type: notify.EventRequestCreated, RequestID: "REQ-5"}))

	assert.Eventually(t, func() bool {
		raw, err := f.kv.Get(ctx, f.fanout.CacheKey("BB-SEED00002"))
		if err != nil {
			return false
		}
		var s matcher.Snapshot
		return json.Unmarshal([]byte(raw), &s) == nil && len(s.Requests) == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestAlertService_Polling(t *testing.T) {
	f := newFixture(t)
	svc := NewAlertService(TriggerPolling, 20*time.Millisecond, f.fanout, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	assert.Eventually(t, func() bool { return f.pub.count() == 7 }, 2*time.Second, 10*time.Millisecond)
	f.addRequest(t, "REQ-7", domain.Location{State: "Maharashtra", District: "Mumbai City", City: "Mumbai"})
	assert.Eventually(t, func() bool { return f.pub.count() > 7 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestAlertService_BadMode(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, NewAlertService("cron", time.Second, f.fanout, nil, zap.NewNop()).Start(context.Background()))
	assert.Error(t, NewAlertService(TriggerEvents, time.Second, f.fanout, nil, zap.NewNop()).Start(context.Background()))
}
