package service

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/repository"
)

// BankService blood bank directory and stock management.
type BankService struct {
	banks  repository.BanksRepository
	bus    notify.Publisher
	logger *zap.Logger
}

func NewBankService(banks repository.BanksRepository, bus notify.Publisher, logger *zap.Logger) *BankService {
	if bus == nil {
		bus = notify.Nop{}
	}
	return &BankService{banks: banks, bus: bus, logger: logger}
}

func (s *BankService) Search(ctx context.Context, f domain.BankFilter) ([]domain.BloodBank, error) {
	banks, err := s.banks.ListBanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search blood banks: %w", err)
	}
	return domain.FilterBanks(banks, f), nil
}

// UpdateStock sets one group's level on the caller's own bank.
func (s *BankService) UpdateStock(ctx context.Context, who *domain.Identity, group, level string) (*domain.BloodBank, error) {
	if who == nil {
		return nil, domain.ErrNoSession
	}
	if !who.IsBank() {
		return nil, fmt.Errorf("only blood banks can update stock: %w", domain.ErrForbidden)
	}
	g, ok := domain.ParseBloodGroup(group)
	if !ok {
		return nil, fmt.Errorf("unknown blood group %q: %w", group, domain.ErrInvalidInput)
	}
	l, ok := domain.ParseStockLevel(level)
	if !ok {
		return nil, fmt.Errorf("unknown stock level %q: %w", level, domain.ErrInvalidInput)
	}

	bank, err := s.banks.GetBank(ctx, who.ID)
	if err != nil {
		return nil, err
	}
	stock := bank.Stock.Normalize()
	stock[g] = l
	if err := s.banks.UpdateBankStock(ctx, bank.ID, stock); err != nil {
		return nil, err
	}
	bank.Stock = stock

	s.logger.Info("stock updated",
		zap.String("bank_id", bank.ID),
		zap.String("blood_group", string(g)),
		zap.String("level", string(l)),
	)
	if err := s.bus.Publish(ctx, notify.TopicStorage); err != nil {
		s.logger.Warn("failed to publish stock change", zap.Error(err))
	}
	return bank, nil
}

const stockSheet = "Stock"

// ExportStock writes an xlsx workbook with one row per bank and one column per group.
func (s *BankService) ExportStock(ctx context.Context, w io.Writer) error {
	banks, err := s.banks.ListBanks(ctx)
	if err != nil {
		return fmt.Errorf("failed to export stock: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", stockSheet); err != nil {
		return err
	}

	header := []any{"ID", "Name", "State", "District", "City", "Mobile", "Hours"}
	for _, g := range domain.AllBloodGroups {
		header = append(header, string(g))
	}
	if err := f.SetSheetRow(stockSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, b := range banks {
		row := []any{b.ID, b.Name, b.State, b.District, b.City, b.Mobile, b.Hours}
		for _, g := range domain.AllBloodGroups {
			row = append(row, string(b.Stock.Level(g)))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(stockSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write bank %s: %w", b.ID, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
