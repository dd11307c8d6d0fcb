package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/otp"
	"india-blood-connect/internal/repository"
	"india-blood-connect/internal/store"
)

// Session the logged-in identity behind a token.
type Session struct {
	Token     string           `json:"token"`
	Identity  *domain.Identity `json:"identity"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Manager registration, login and the current-session store.
//
// Sessions live in the KV under indiaBloodConnect_user:<token>. With a zero
// TTL they last until Logout.
type Manager struct {
	kv     store.KV
	donors repository.DonorsRepository
	banks  repository.BanksRepository
	otp    otp.Verifier
	bus    notify.Publisher
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(kv store.KV, repos *repository.Repos, verifier otp.Verifier, bus notify.Publisher, ttl time.Duration, logger *zap.Logger) *Manager {
	if bus == nil {
		bus = notify.Nop{}
	}
	return &Manager{
		kv:     kv,
		donors: repos.Donors,
		banks:  repos.Banks,
		otp:    verifier,
		bus:    bus,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

func sessionKey(token string) string { return store.KeySession + ":" + token }

// SendOTP starts a login or registration for mobile.
func (m *Manager) SendOTP(ctx context.Context, mobile string) error {
	return m.otp.Send(ctx, mobile)
}

// Login verifies the code, then looks the mobile up in the role's directory.
// An unknown mobile yields domain.ErrNotFound and no session.
func (m *Manager) Login(ctx context.Context, role domain.Role, mobile, code string) (*Session, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", role, domain.ErrInvalidInput)
	}
	if !otp.ValidMobile(mobile) {
		return nil, fmt.Errorf("mobile must be 10 digits: %w", domain.ErrInvalidInput)
	}
	if err := m.otp.Verify(ctx, mobile, code); err != nil {
		return nil, err
	}

	identity, err := m.lookupByMobile(ctx, role, mobile)
	if err != nil {
		return nil, err
	}
	return m.open(ctx, identity)
}

func (m *Manager) lookupByMobile(ctx context.Context, role domain.Role, mobile string) (*domain.Identity, error) {
	if role == domain.RoleBank {
		b, err := m.banks.FindBankByMobile(ctx, mobile)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("no blood bank account found with this mobile number: %w", domain.ErrNotFound)
			}
			return nil, err
		}
		return domain.BankIdentity(b), nil
	}
	d, err := m.donors.FindDonorByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no donor account found with this mobile number: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	return domain.DonorIdentity(d), nil
}

// Logout ends the session. Unknown tokens are not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.kv.Del(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	m.publish(ctx)
	return nil
}

// Current returns the identity behind token, domain.ErrNoSession when absent.
func (m *Manager) Current(ctx context.Context, token string) (*domain.Identity, error) {
	s, err := m.load(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Identity, nil
}

// Refresh re-reads the identity record into the session, e.g. after a stock change.
func (m *Manager) Refresh(ctx context.Context, token string) (*domain.Identity, error) {
	s, err := m.load(ctx, token)
	if err != nil {
		return nil, err
	}
	var fresh *domain.Identity
	switch s.Identity.Role {
	case domain.RoleBank:
		b, err := m.banks.GetBank(ctx, s.Identity.ID)
		if err != nil {
			return nil, err
		}
		fresh = domain.BankIdentity(b)
	default:
		d, err := m.donors.GetDonor(ctx, s.Identity.ID)
		if err != nil {
			return nil, err
		}
		fresh = domain.DonorIdentity(d)
	}
	s.Identity = fresh
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (m *Manager) open(ctx context.Context, identity *domain.Identity) (*Session, error) {
	s := &Session{
		Token:     uuid.NewString(),
		Identity:  identity,
		CreatedAt: m.now().UTC(),
	}
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Info("session opened",
		zap.String("identity_id", identity.ID),
		zap.String("role", string(identity.Role)),
	)
	m.publish(ctx)
	return s, nil
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	if err := store.SetJSON(ctx, m.kv, sessionKey(s.Token), s, m.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (m *Manager) load(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, domain.ErrNoSession
	}
	var s Session
	err := store.GetJSON(ctx, m.kv, sessionKey(token), &s)
	switch {
	case errors.Is(err, store.ErrMiss):
		return nil, domain.ErrNoSession
	case errors.Is(err, store.ErrMalformed) || (err == nil && s.Identity == nil):
		m.logger.Warn("malformed session, treating as logged out", zap.Error(err))
		return nil, domain.ErrNoSession
	case err != nil:
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return &s, nil
}

func (m *Manager) publish(ctx context.Context) {
	if err := m.bus.Publish(ctx, notify.TopicStorage); err != nil {
		m.logger.Warn("failed to publish session change", zap.Error(err))
	}
}
