package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
)

type PostgresBanksRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresBanksRepository(db *sql.DB, logger *zap.Logger) *PostgresBanksRepository {
	return &PostgresBanksRepository{db: db, logger: logger}
}

var _ BanksRepository = (*PostgresBanksRepository)(nil)

const bankColumns = `id, name, address, phone, mobile, hours, verified, state, district, city,
	stock, category, license_number, created_at`

func (r *PostgresBanksRepository) CreateBank(ctx context.Context, b *domain.BloodBank) error {
	stock, err := json.Marshal(b.Stock.Normalize())
	if err != nil {
		return fmt.Errorf("failed to encode stock: %w", err)
	}
	query := `
		INSERT INTO blood_banks (` + bankColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13, $14)
	`
	_, err = r.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Address, b.Phone, b.Mobile, b.Hours, b.Verified, b.State, b.District, b.City,
		string(stock), string(b.Category), b.LicenseNumber, b.CreatedAt,
	)
	if err != nil {
		return mapWriteError("create blood bank", err)
	}
	r.logger.Debug("blood bank created", zap.String("bank_id", b.ID))
	return nil
}

func (r *PostgresBanksRepository) ListBanks(ctx context.Context) ([]domain.BloodBank, error) {
	query := `SELECT ` + bankColumns + ` FROM blood_banks ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list blood banks: %w", err)
	}
	defer rows.Close()

	banks := []domain.BloodBank{}
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blood bank: %w", err)
		}
		banks = append(banks, *b)
	}
	return banks, rows.Err()
}

func (r *PostgresBanksRepository) GetBank(ctx context.Context, id string) (*domain.BloodBank, error) {
	query := `SELECT ` + bankColumns + ` FROM blood_banks WHERE id = $1`
	b, err := scanBank(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapReadError("blood bank "+id, err)
	}
	return b, nil
}

func (r *PostgresBanksRepository) FindBankByMobile(ctx context.Context, mobile string) (*domain.BloodBank, error) {
	query := `SELECT ` + bankColumns + ` FROM blood_banks WHERE mobile = $1 ORDER BY created_at LIMIT 1`
	b, err := scanBank(r.db.QueryRowContext(ctx, query, mobile))
	if err != nil {
		return nil, mapReadError("blood bank with mobile", err)
	}
	return b, nil
}

func (r *PostgresBanksRepository) UpdateBankStock(ctx context.Context, id string, stock domain.Stock) error {
	data, err := json.Marshal(stock.Normalize())
	if err != nil {
		return fmt.Errorf("failed to encode stock: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE blood_banks SET stock = $2::jsonb WHERE id = $1`, id, string(data))
	if err != nil {
		return mapWriteError("update stock", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("blood bank %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanBank(s rowScanner) (*domain.BloodBank, error) {
	var b domain.BloodBank
	var stock []byte
	var category string
	err := s.Scan(
		&b.ID, &b.Name, &b.Address, &b.Phone, &b.Mobile, &b.Hours, &b.Verified, &b.State, &b.District, &b.City,
		&stock, &category, &b.LicenseNumber, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	var parsed domain.Stock
	if len(stock) > 0 {
		// unreadable stock renders as all LOW
		_ = json.Unmarshal(stock, &parsed)
	}
	b.Stock = parsed.Normalize()
	b.Category = domain.BankCategory(category)
	b.Role = domain.RoleBank
	return &b, nil
}
