package consumer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/matcher"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/repository"
	"india-blood-connect/internal/store"
)

// Publisher pushes a payload to a broker topic; common/mqtt.Client implements it.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

type FanoutOptions struct {
	TopicPrefix string // e.g. "ibc/alerts/"
	CachePrefix string // e.g. "ibc:alerts:"
	QoS         byte
}

// FanoutResult counts for one pass.
type FanoutResult struct {
	Identities int
	Changed    int
	Failed     int
}

// AlertFanout precomputes every donor's and bank's alert snapshot, caches it
// in the KV and pushes it to the identity's topic when the matched set changes.
type AlertFanout struct {
	donors   repository.DonorsRepository
	banks    repository.BanksRepository
	requests repository.RequestsRepository
	kv       store.KV
	pub      Publisher
	opts     FanoutOptions
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[string]string // identity id -> hash of matched request ids
}

// NewAlertFanout pub may be nil, then only the KV cache is written.
func NewAlertFanout(repos *repository.Repos, kv store.KV, pub Publisher, opts FanoutOptions, logger *zap.Logger) *AlertFanout {
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "ibc/alerts/"
	}
	if opts.CachePrefix == "" {
		opts.CachePrefix = "ibc:alerts:"
	}
	return &AlertFanout{
		donors:   repos.Donors,
		banks:    repos.Banks,
		requests: repos.Requests,
		kv:       kv,
		pub:      pub,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		last:     make(map[string]string),
	}
}

// Run one full pass over all identities. Per-identity failures are counted
// and logged; only a failure to read the directory aborts the pass.
func (f *AlertFanout) Run(ctx context.Context) (FanoutResult, error) {
	var res FanoutResult

	requests, err := f.requests.ListRequests(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list requests: %w", err)
	}
	identities, err := f.identities(ctx)
	if err != nil {
		return res, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	generated := f.now().UTC()
	for _, who := range identities {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Identities++

		snap := matcher.Snapshot{
			ViewerID:    who.ID,
			Requests:    matcher.Match(requests, who.Location),
			GeneratedAt: generated,
		}
		h := hashIDs(snap.IDs())
		if f.last[who.ID] == h {
			continue
		}
		if err := f.deliver(ctx, snap); err != nil {
			res.Failed++
			f.logger.Warn("failed to deliver alerts",
				zap.String("identity_id", who.ID),
				zap.Error(err),
			)
			continue
		}
		f.last[who.ID] = h
		res.Changed++
	}

	f.logger.Debug("alert fan-out pass",
		zap.Int("identities", res.Identities),
		zap.Int("changed", res.Changed),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// ErrPartialDelivery some identities did not get their snapshot in a pass.
var ErrPartialDelivery = errors.New("alert delivery incomplete")

// HandleEvent re-runs the fan-out for a request event; usable as an
// EventHandler. Failed deliveries come back as ErrPartialDelivery so the
// event stays pending and is retried.
func (f *AlertFanout) HandleEvent(ctx context.Context, ev notify.RequestEvent) error {
	f.logger.Info("Processing request event",
		zap.String("event_type", ev.Type),
		zap.String("request_id", ev.RequestID),
	)
	res, err := f.Run(ctx)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%w: %d of %d identities", ErrPartialDelivery, res.Failed, res.Identities)
	}
	return nil
}

func (f *AlertFanout) identities(ctx context.Context) ([]*domain.Identity, error) {
	donors, err := f.donors.ListDonors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	banks, err := f.banks.ListBanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list banks: %w", err)
	}
	out := make([]*domain.Identity, 0, len(donors)+len(banks))
	for i := range donors {
		out = append(out, domain.DonorIdentity(&donors[i]))
	}
	for i := range banks {
		out = append(out, domain.BankIdentity(&banks[i]))
	}
	return out, nil
}

func (f *AlertFanout) deliver(ctx context.Context, snap matcher.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := f.kv.Set(ctx, f.CacheKey(snap.ViewerID), string(payload), 0); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	if f.pub != nil {
		if err := f.pub.Publish(f.Topic(snap.ViewerID), f.opts.QoS, true, payload); err != nil {
			return err
		}
	}
	return nil
}

func (f *AlertFanout) CacheKey(identityID string) string { return f.opts.CachePrefix + identityID }

func (f *AlertFanout) Topic(identityID string) string { return f.opts.TopicPrefix + identityID }

func hashIDs(ids []string) string {
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return hex.EncodeToString(sum[:])
}
