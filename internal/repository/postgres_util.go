package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"india-blood-connect/internal/domain"
)

const pqUniqueViolation = "23505"

// mapWriteError turns a unique violation into domain.ErrDuplicate.
func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%s: %s: %w", op, pqErr.Constraint, domain.ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func mapReadError(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}
