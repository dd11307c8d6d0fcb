package repository

import (
	"context"
	_ "embed"

	"india-blood-connect/internal/domain"
)

// Schema DDL for the Postgres backend, applied by `ibc-admin migrate`.
//
//go:embed schema.sql
var Schema string

type DonorsRepository interface {
	CreateDonor(ctx context.Context, d *domain.Donor) error
	ListDonors(ctx context.Context) ([]domain.Donor, error)
	GetDonor(ctx context.Context, id string) (*domain.Donor, error)
	// FindDonorByMobile returns the first donor registered with mobile.
	FindDonorByMobile(ctx context.Context, mobile string) (*domain.Donor, error)
}

type BanksRepository interface {
	CreateBank(ctx context.Context, b *domain.BloodBank) error
	ListBanks(ctx context.Context) ([]domain.BloodBank, error)
	GetBank(ctx context.Context, id string) (*domain.BloodBank, error)
	FindBankByMobile(ctx context.Context, mobile string) (*domain.BloodBank, error)
	// UpdateBankStock replaces the whole stock map of bank id.
	UpdateBankStock(ctx context.Context, id string, stock domain.Stock) error
}

type RequestsRepository interface {
	CreateRequest(ctx context.Context, r *domain.BloodRequest) error
	ListRequests(ctx context.Context) ([]domain.BloodRequest, error)
	GetRequest(ctx context.Context, id string) (*domain.BloodRequest, error)
	// DeleteRequest is a no-op for an unknown id.
	DeleteRequest(ctx context.Context, id string) error
	ListRequestsByContact(ctx context.Context, mobile string) ([]domain.BloodRequest, error)
}

type CampsRepository interface {
	CreateCamp(ctx context.Context, c *domain.DonationCamp) error
	ListCamps(ctx context.Context) ([]domain.DonationCamp, error)
	GetCamp(ctx context.Context, id string) (*domain.DonationCamp, error)
}

type CampRegistrationsRepository interface {
	// RegisterForCamp reports created=false when the pair already exists and
	// the backend can tell.
	RegisterForCamp(ctx context.Context, reg *domain.CampRegistration) (created bool, err error)
	ListRegistrations(ctx context.Context, campID string) ([]domain.CampRegistration, error)
	IsRegistered(ctx context.Context, campID, userID string) (bool, error)
	CountByCamp(ctx context.Context) (map[string]int, error)
}

// Repos every repository of one backend.
type Repos struct {
	Backend       string
	Donors        DonorsRepository
	Banks         BanksRepository
	Requests      RequestsRepository
	Camps         CampsRepository
	Registrations CampRegistrationsRepository
}
