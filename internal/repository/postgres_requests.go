package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
)

type PostgresRequestsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresRequestsRepository(db *sql.DB, logger *zap.Logger) *PostgresRequestsRepository {
	return &PostgresRequestsRepository{db: db, logger: logger}
}

var _ RequestsRepository = (*PostgresRequestsRepository)(nil)

const requestColumns = `id, patient_name, blood_group, state, district, city, address, notes,
	contact_name, contact_mobile, created_by, created_at`

func (r *PostgresRequestsRepository) CreateRequest(ctx context.Context, req *domain.BloodRequest) error {
	query := `
		INSERT INTO blood_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.PatientName, string(req.BloodGroup), req.State, req.District, req.City, req.Address, req.Notes,
		req.ContactName, req.ContactMobile, req.CreatedBy, req.Timestamp,
	)
	if err != nil {
		return mapWriteError("create blood request", err)
	}
	return nil
}

func (r *PostgresRequestsRepository) ListRequests(ctx context.Context) ([]domain.BloodRequest, error) {
	return r.query(ctx, `SELECT `+requestColumns+` FROM blood_requests ORDER BY created_at DESC, id`)
}

func (r *PostgresRequestsRepository) GetRequest(ctx context.Context, id string) (*domain.BloodRequest, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM blood_requests WHERE id = $1`, id))
	if err != nil {
		return nil, mapReadError("blood request "+id, err)
	}
	return req, nil
}

func (r *PostgresRequestsRepository) DeleteRequest(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blood_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blood request: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.logger.Debug("blood request deleted", zap.String("request_id", id))
	}
	return nil
}

func (r *PostgresRequestsRepository) ListRequestsByContact(ctx context.Context, mobile string) ([]domain.BloodRequest, error) {
	return r.query(ctx, `SELECT `+requestColumns+` FROM blood_requests WHERE contact_mobile = $1 ORDER BY created_at DESC, id`, mobile)
}

func (r *PostgresRequestsRepository) query(ctx context.Context, query string, args ...any) ([]domain.BloodRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blood requests: %w", err)
	}
	defer rows.Close()

	out := []domain.BloodRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blood request: %w", err)
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func scanRequest(s rowScanner) (*domain.BloodRequest, error) {
	var req domain.BloodRequest
	var group string
	err := s.Scan(
		&req.ID, &req.PatientName, &group, &req.State, &req.District, &req.City, &req.Address, &req.Notes,
		&req.ContactName, &req.ContactMobile, &req.CreatedBy, &req.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	req.BloodGroup = domain.BloodGroup(group)
	return &req, nil
}
