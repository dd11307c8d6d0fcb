package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
)

type PostgresCampsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresCampsRepository(db *sql.DB, logger *zap.Logger) *PostgresCampsRepository {
	return &PostgresCampsRepository{db: db, logger: logger}
}

var (
	_ CampsRepository             = (*PostgresCampsRepository)(nil)
	_ CampRegistrationsRepository = (*PostgresCampsRepository)(nil)
)

const campColumns = `id, organizer_id, name, date, time, address, state, district, city,
	tag, registered_count, image_url, created_at`

func (r *PostgresCampsRepository) CreateCamp(ctx context.Context, c *domain.DonationCamp) error {
	query := `
		INSERT INTO donation_camps (` + campColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.OrganizerID, c.Name, c.Date, c.Time, c.Address, c.State, c.District, c.City,
		string(c.Tag), c.RegisteredCount, c.ImageURL, c.CreatedAt,
	)
	if err != nil {
		return mapWriteError("create donation camp", err)
	}
	return nil
}

func (r *PostgresCampsRepository) ListCamps(ctx context.Context) ([]domain.DonationCamp, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+campColumns+` FROM donation_camps ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list donation camps: %w", err)
	}
	defer rows.Close()

	camps := []domain.DonationCamp{}
	for rows.Next() {
		c, err := scanCamp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation camp: %w", err)
		}
		camps = append(camps, *c)
	}
	return camps, rows.Err()
}

func (r *PostgresCampsRepository) GetCamp(ctx context.Context, id string) (*domain.DonationCamp, error) {
	c, err := scanCamp(r.db.QueryRowContext(ctx, `SELECT `+campColumns+` FROM donation_camps WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadError("donation camp "+id, err)
	}
	return c, nil
}

// RegisterForCamp relies on the (camp_id, user_id) primary key; a repeated
// registration inserts nothing and reports created=false.
func (r *PostgresCampsRepository) RegisterForCamp(ctx context.Context, reg *domain.CampRegistration) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO camp_registrations (camp_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (camp_id, user_id) DO NOTHING
	`, reg.CampID, reg.UserID, reg.CreatedAt)
	if err != nil {
		return false, mapWriteError("register for camp", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to register for camp: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresCampsRepository) ListRegistrations(ctx context.Context, campID string) ([]domain.CampRegistration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT camp_id, user_id, created_at FROM camp_registrations
		WHERE camp_id = $1 ORDER BY created_at
	`, campID)
	if err != nil {
		return nil, fmt.Errorf("failed to list camp registrations: %w", err)
	}
	defer rows.Close()

	out := []domain.CampRegistration{}
	for rows.Next() {
		var reg domain.CampRegistration
		if err := rows.Scan(&reg.CampID, &reg.UserID, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan camp registration: %w", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (r *PostgresCampsRepository) IsRegistered(ctx context.Context, campID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM camp_registrations WHERE camp_id = $1 AND user_id = $2)
	`, campID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check camp registration: %w", err)
	}
	return exists, nil
}

func (r *PostgresCampsRepository) CountByCamp(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT camp_id, COUNT(*) FROM camp_registrations GROUP BY camp_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count camp registrations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan registration count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func scanCamp(s rowScanner) (*domain.DonationCamp, error) {
	var c domain.DonationCamp
	var tag string
	err := s.Scan(
		&c.ID, &c.OrganizerID, &c.Name, &c.Date, &c.Time, &c.Address, &c.State, &c.District, &c.City,
		&tag, &c.RegisteredCount, &c.ImageURL, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Tag = domain.CampTag(tag)
	return &c, nil
}

// NewPostgresRepos wires every Postgres repository onto db.
func NewPostgresRepos(db *sql.DB, logger *zap.Logger) *Repos {
	camps := NewPostgresCampsRepository(db, logger)
	return &Repos{
		Backend:       "postgres",
		Donors:        NewPostgresDonorsRepository(db, logger),
		Banks:         NewPostgresBanksRepository(db, logger),
		Requests:      NewPostgresRequestsRepository(db, logger),
		Camps:         camps,
		Registrations: camps,
	}
}
