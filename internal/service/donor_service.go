package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/repository"
)

// DonorService donor directory search.
type DonorService struct {
	donors repository.DonorsRepository
	logger *zap.Logger
}

func NewDonorService(donors repository.DonorsRepository, logger *zap.Logger) *DonorService {
	return &DonorService{donors: donors, logger: logger}
}

func (s *DonorService) Search(ctx context.Context, f domain.DonorFilter) ([]domain.Donor, error) {
	donors, err := s.donors.ListDonors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search donors: %w", err)
	}
	return domain.FilterDonors(donors, f), nil
}
