package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tablecraft/tablecraft-backend/internal/domain/aggregates"
	"gorm.io/gorm"
)

// MapStoreError maps storage failures into aggregate error codes. Integrity
// violations pass through with their cause intact so the unit of work can
// roll back and re-raise without inventing a recovery.
func MapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *aggregates.Error
	if errors.As(err, &aggErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return aggregates.Wrap(aggregates.CodeNotFound, op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return aggregates.Wrap(aggregates.CodeInternal, op, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated), errors.Is(err, gorm.ErrDuplicatedKey):
		return aggregates.Wrap(aggregates.CodeIntegrityViolation, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505", "23503", "23502", "23514":
			// unique / foreign key / not-null / check violations
			return aggregates.Wrap(aggregates.CodeIntegrityViolation, op, err)
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unique constraint"),
		strings.Contains(msg, "duplicate key"),
		strings.Contains(msg, "foreign key constraint"):
		return aggregates.Wrap(aggregates.CodeIntegrityViolation, op, err)
	default:
		return aggregates.Wrap(aggregates.CodeInternal, op, err)
	}
}
