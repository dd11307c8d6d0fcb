package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
)

type PostgresDonorsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresDonorsRepository(db *sql.DB, logger *zap.Logger) *PostgresDonorsRepository {
	return &PostgresDonorsRepository{db: db, logger: logger}
}

var _ DonorsRepository = (*PostgresDonorsRepository)(nil)

const donorColumns = `id, name, blood_group, state, district, city, address, mobile,
	verified, elite, gender, weight, last_donated, image_url, created_at`

func (r *PostgresDonorsRepository) CreateDonor(ctx context.Context, d *domain.Donor) error {
	query := `
		INSERT INTO donors (` + donorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Name, string(d.BloodGroup), d.State, d.District, d.City, d.Address, d.Mobile,
		d.Verified, d.Elite, d.Gender, d.Weight, d.LastDonated, d.ImageURL, d.CreatedAt,
	)
	if err != nil {
		return mapWriteError("create donor", err)
	}
	r.logger.Debug("donor created", zap.String("donor_id", d.ID))
	return nil
}

func (r *PostgresDonorsRepository) ListDonors(ctx context.Context) ([]domain.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	defer rows.Close()

	donors := []domain.Donor{}
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donor: %w", err)
		}
		donors = append(donors, *d)
	}
	return donors, rows.Err()
}

func (r *PostgresDonorsRepository) GetDonor(ctx context.Context, id string) (*domain.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors WHERE id = $1`
	d, err := scanDonor(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapReadError("donor "+id, err)
	}
	return d, nil
}

func (r *PostgresDonorsRepository) FindDonorByMobile(ctx context.Context, mobile string) (*domain.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors WHERE mobile = $1 ORDER BY created_at LIMIT 1`
	d, err := scanDonor(r.db.QueryRowContext(ctx, query, mobile))
	if err != nil {
		return nil, mapReadError("donor with mobile", err)
	}
	return d, nil
}

func scanDonor(s rowScanner) (*domain.Donor, error) {
	var d domain.Donor
	var group string
	err := s.Scan(
		&d.ID, &d.Name, &group, &d.State, &d.District, &d.City, &d.Address, &d.Mobile,
		&d.Verified, &d.Elite, &d.Gender, &d.Weight, &d.LastDonated, &d.ImageURL, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.BloodGroup = domain.BloodGroup(group)
	d.Role = domain.RoleDonor
	return &d, nil
}
