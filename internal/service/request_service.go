package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/matcher"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/repository"
)

// RequestService emergency broadcasts.
type RequestService struct {
	requests repository.RequestsRepository
	bus      notify.Publisher
	events   notify.EventPublisher
	watcher  *matcher.Watcher
	logger   *zap.Logger
	now      func() time.Time
}

func NewRequestService(requests repository.RequestsRepository, bus notify.Publisher, events notify.EventPublisher, watcher *matcher.Watcher, logger *zap.Logger) *RequestService {
	if bus == nil {
		bus = notify.Nop{}
	}
	if events == nil {
		events = notify.NopEvents{}
	}
	return &RequestService{requests: requests, bus: bus, events: events, watcher: watcher, logger: logger, now: time.Now}
}

type BroadcastInput struct {
	PatientName string `json:"patientName"`
	BloodGroup  string `json:"bloodGroup"`
	Address     string `json:"location"`
	Notes       string `json:"notes"`
	domain.Location
}

// Broadcast publishes a new request; the contact is the caller.
func (s *RequestService) Broadcast(ctx context.Context, who *domain.Identity, in BroadcastInput) (*domain.BloodRequest, error) {
	if who == nil {
		return nil, fmt.Errorf("please login to request blood support: %w", domain.ErrNoSession)
	}
	group, ok := domain.ParseBloodGroup(in.BloodGroup)
	if !ok {
		return nil, fmt.Errorf("unknown blood group %q: %w", in.BloodGroup, domain.ErrInvalidInput)
	}
	loc := in.Location.Trimmed()
	if strings.TrimSpace(in.PatientName) == "" || strings.TrimSpace(in.Address) == "" || !loc.Complete() {
		return nil, fmt.Errorf("patient name, hospital and location are required: %w", domain.ErrInvalidInput)
	}

	r := &domain.BloodRequest{
		ID:            domain.NewID(domain.RequestIDPrefix),
		PatientName:   strings.TrimSpace(in.PatientName),
		BloodGroup:    group,
		Location:      loc,
		Address:       strings.TrimSpace(in.Address),
		Notes:         strings.TrimSpace(in.Notes),
		Timestamp:     s.now().UTC(),
		ContactName:   who.Name,
		ContactMobile: who.Mobile,
		CreatedBy:     who.ID,
	}
	if err := s.requests.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("blood request broadcast",
		zap.String("request_id", r.ID),
		zap.String("blood_group", string(r.BloodGroup)),
		zap.String("district", r.District),
	)
	s.announce(ctx, notify.EventRequestCreated, r)
	return r, nil
}

// Cancel deletes the caller's own request. Unknown ids are a no-op.
func (s *RequestService) Cancel(ctx context.Context, who *domain.Identity, id string) error {
	if who == nil {
		return domain.ErrNoSession
	}
	r, err := s.requests.GetRequest(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !r.OwnedBy(who) {
		return fmt.Errorf("only the requester can cancel this request: %w", domain.ErrForbidden)
	}
	if err := s.requests.DeleteRequest(ctx, id); err != nil {
		return err
	}
	s.logger.Info("blood request cancelled", zap.String("request_id", id))
	s.announce(ctx, notify.EventRequestCancelled, r)
	return nil
}

// Mine requests whose contact is the caller's mobile.
func (s *RequestService) Mine(ctx context.Context, who *domain.Identity) ([]domain.BloodRequest, error) {
	if who == nil {
		return nil, domain.ErrNoSession
	}
	return s.requests.ListRequestsByContact(ctx, who.Mobile)
}

// Alerts one-shot live alert evaluation for who (nil: empty snapshot).
func (s *RequestService) Alerts(ctx context.Context, who *domain.Identity) (matcher.Snapshot, error) {
	return s.watcher.Evaluate(ctx, who)
}

// Watch streams alert snapshots for who until ctx is done.
func (s *RequestService) Watch(ctx context.Context, who *domain.Identity) <-chan matcher.Snapshot {
	return s.watcher.Watch(ctx, who)
}

func (s *RequestService) announce(ctx context.Context, eventType string, r *domain.BloodRequest) {
	if err := s.bus.Publish(ctx, notify.TopicStorage); err != nil {
		s.logger.Warn("failed to publish request change", zap.Error(err))
	}
	err := s.events.PublishRequestEvent(ctx, notify.RequestEvent{
		Type:       eventType,
		RequestID:  r.ID,
		BloodGroup: string(r.BloodGroup),
		State:      r.State,
		District:   r.District,
		At:         s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to publish request event", zap.String("request_id", r.ID), zap.Error(err))
	}
}
