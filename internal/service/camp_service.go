package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/repository"
)

// CampService donation camps and donor sign-ups.
type CampService struct {
	camps  repository.CampsRepository
	regs   repository.CampRegistrationsRepository
	bus    notify.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewCampService(camps repository.CampsRepository, regs repository.CampRegistrationsRepository, bus notify.Publisher, logger *zap.Logger) *CampService {
	if bus == nil {
		bus = notify.Nop{}
	}
	return &CampService{camps: camps, regs: regs, bus: bus, logger: logger, now: time.Now}
}

// List camps within scope with their displayed count (seed + registrations).
// viewer may be nil.
func (s *CampService) List(ctx context.Context, scope domain.Scope, viewer *domain.Identity) ([]domain.CampListing, error) {
	camps, err := s.camps.ListCamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list camps: %w", err)
	}
	counts, err := s.regs.CountByCamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list camps: %w", err)
	}

	filtered := domain.FilterCamps(camps, scope)
	out := make([]domain.CampListing, 0, len(filtered))
	for _, c := range filtered {
		l := domain.CampListing{DonationCamp: c, TotalRegistered: c.RegisteredCount + counts[c.ID]}
		if viewer.IsDonor() {
			if l.Registered, err = s.regs.IsRegistered(ctx, c.ID, viewer.ID); err != nil {
				return nil, fmt.Errorf("failed to list camps: %w", err)
			}
		}
		out = append(out, l)
	}
	return out, nil
}

type CreateCampInput struct {
	Name     string `json:"name"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Address  string `json:"location"`
	Tag      string `json:"tag"`
	ImageURL string `json:"imageUrl"`
	domain.Location
}

// Create a camp organized by the calling bank.
func (s *CampService) Create(ctx context.Context, who *domain.Identity, in CreateCampInput) (*domain.DonationCamp, error) {
	if who == nil {
		return nil, domain.ErrNoSession
	}
	if !who.IsBank() {
		return nil, fmt.Errorf("only blood banks can organize camps: %w", domain.ErrForbidden)
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Date) == "" {
		return nil, fmt.Errorf("name and date are required: %w", domain.ErrInvalidInput)
	}
	tag := domain.CampTag(strings.ToUpper(strings.TrimSpace(in.Tag)))
	if tag == "" {
		tag = domain.CampRegistrationOpen
	}
	if !tag.Valid() {
		return nil, fmt.Errorf("unknown camp tag %q: %w", in.Tag, domain.ErrInvalidInput)
	}
	loc := in.Location.Trimmed()
	if loc == (domain.Location{}) {
		loc = who.Location
	}

	c := &domain.DonationCamp{
		ID:          domain.NewID(domain.CampIDPrefix),
		OrganizerID: who.ID,
		Name:        strings.TrimSpace(in.Name),
		Date:        strings.TrimSpace(in.Date),
		Time:        strings.TrimSpace(in.Time),
		Address:     strings.TrimSpace(in.Address),
		Location:    loc,
		Tag:         tag,
		ImageURL:    in.ImageURL,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.camps.CreateCamp(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("camp created", zap.String("camp_id", c.ID), zap.String("organizer_id", who.ID))
	s.publish(ctx)
	return c, nil
}

// Register signs the calling donor up for campID.
func (s *CampService) Register(ctx context.Context, who *domain.Identity, campID string) error {
	if who == nil {
		return fmt.Errorf("please login as a donor to register for donation camps: %w", domain.ErrNoSession)
	}
	if !who.IsDonor() {
		return fmt.Errorf("registration is only open to individual donors: %w", domain.ErrForbidden)
	}
	if _, err := s.camps.GetCamp(ctx, campID); err != nil {
		return err
	}

	already, err := s.regs.IsRegistered(ctx, campID, who.ID)
	if err != nil {
		return err
	}
	if already {
		return domain.ErrAlreadyRegistered
	}
	created, err := s.regs.RegisterForCamp(ctx, &domain.CampRegistration{
		CampID:    campID,
		UserID:    who.ID,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.ErrAlreadyRegistered
		}
		return err
	}
	if !created {
		return domain.ErrAlreadyRegistered
	}
	s.logger.Info("camp registration", zap.String("camp_id", campID), zap.String("user_id", who.ID))
	s.publish(ctx)
	return nil
}

func (s *CampService) publish(ctx context.Context) {
	if err := s.bus.Publish(ctx, notify.TopicStorage); err != nil {
		s.logger.Warn("failed to publish camp change", zap.Error(err))
	}
}
