package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/otp"
)

const defaultDonorImage = "https://cdn-icons-png.flaticon.com/512/147/147144.png"

type RegisterDonorInput struct {
	Name        string `json:"name"`
	Mobile      string `json:"mobile"`
	BloodGroup  string `json:"bloodGroup"`
	Gender      string `json:"gender"`
	Weight      string `json:"weight"`
	LastDonated string `json:"lastDonated"`
	domain.Location
	OTP string `json:"otp"`
}

type RegisterBankInput struct {
	Name          string `json:"name"`
	Mobile        string `json:"mobile"`
	Address       string `json:"address"`
	Hours         string `json:"hours"`
	Category      string `json:"category"`
	LicenseNumber string `json:"licenseNumber"`
	domain.Location
	OTP string `json:"otp"`
}

// RegisterDonor creates the donor record and logs it in.
func (m *Manager) RegisterDonor(ctx context.Context, in RegisterDonorInput) (*Session, error) {
	group, ok := domain.ParseBloodGroup(in.BloodGroup)
	if !ok {
		return nil, fmt.Errorf("unknown blood group %q: %w", in.BloodGroup, domain.ErrInvalidInput)
	}
	loc, err := validateCommon(in.Name, in.Mobile, in.Location)
	if err != nil {
		return nil, err
	}
	if err := m.otp.Verify(ctx, in.Mobile, in.OTP); err != nil {
		return nil, err
	}
	if err := m.ensureMobileFree(ctx, domain.RoleDonor, in.Mobile); err != nil {
		return nil, err
	}

	d := &domain.Donor{
		ID:          domain.NewID(domain.DonorIDPrefix),
		Role:        domain.RoleDonor,
		Name:        strings.TrimSpace(in.Name),
		BloodGroup:  group,
		Location:    loc,
		Address:     loc.City + ", " + loc.District,
		Mobile:      in.Mobile,
		Verified:    true,
		Gender:      in.Gender,
		Weight:      in.Weight,
		LastDonated: in.LastDonated,
		ImageURL:    defaultDonorImage,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.donors.CreateDonor(ctx, d); err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	m.logger.Info("donor registered", zap.String("donor_id", d.ID), zap.String("district", d.District))
	return m.open(ctx, domain.DonorIdentity(d))
}

// RegisterBank creates the bank record with the default stock and logs it in.
func (m *Manager) RegisterBank(ctx context.Context, in RegisterBankInput) (*Session, error) {
	loc, err := validateCommon(in.Name, in.Mobile, in.Location)
	if err != nil {
		return nil, err
	}
	category := domain.BankCategory(in.Category)
	switch category {
	case "", domain.BankGovt, domain.BankPrivate, domain.BankNGO:
	default:
		return nil, fmt.Errorf("unknown bank category %q: %w", in.Category, domain.ErrInvalidInput)
	}
	if err := m.otp.Verify(ctx, in.Mobile, in.OTP); err != nil {
		return nil, err
	}
	if err := m.ensureMobileFree(ctx, domain.RoleBank, in.Mobile); err != nil {
		return nil, err
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		address = loc.City + ", " + loc.District + ", " + loc.State
	}
	hours := strings.TrimSpace(in.Hours)
	if hours == "" {
		hours = "24/7 Available"
	}
	b := &domain.BloodBank{
		ID:            domain.NewID(domain.BankIDPrefix),
		Role:          domain.RoleBank,
		Name:          strings.TrimSpace(in.Name),
		Address:       address,
		Phone:         "+91 " + in.Mobile,
		Mobile:        in.Mobile,
		Hours:         hours,
		Verified:      true,
		Location:      loc,
		Stock:         domain.DefaultBankStock(),
		Category:      category,
		LicenseNumber: strings.TrimSpace(in.LicenseNumber),
		CreatedAt:     m.now().UTC(),
	}
	if err := m.banks.CreateBank(ctx, b); err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	m.logger.Info("blood bank registered", zap.String("bank_id", b.ID), zap.String("district", b.District))
	return m.open(ctx, domain.BankIdentity(b))
}

// ensureMobileFree scan check ahead of the insert. Only the Postgres unique
// index closes the race between two concurrent registrations.
func (m *Manager) ensureMobileFree(ctx context.Context, role domain.Role, mobile string) error {
	_, err := m.lookupByMobile(ctx, role, mobile)
	switch {
	case err == nil:
		return fmt.Errorf("mobile %s is already registered: %w", mobile, domain.ErrDuplicate)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func validateCommon(name, mobile string, loc domain.Location) (domain.Location, error) {
	if strings.TrimSpace(name) == "" {
		return loc, fmt.Errorf("name is required: %w", domain.ErrInvalidInput)
	}
	if !otp.ValidMobile(mobile) {
		return loc, fmt.Errorf("mobile must be 10 digits: %w", domain.ErrInvalidInput)
	}
	loc = loc.Trimmed()
	if !loc.Complete() {
		return loc, fmt.Errorf("state, district and city are required: %w", domain.ErrInvalidInput)
	}
	return loc, nil
}
