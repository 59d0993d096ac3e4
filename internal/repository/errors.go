package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Ledger errors. Callers match them with errors.Is.
var (
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrDuplicateRating     = errors.New("duplicate rating")
	ErrInvalidRating       = errors.New("invalid rating")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrNotFound            = errors.New("record not found")
)

// wrap classifies a storage error and annotates it with the failed operation.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w: %w", op, classify(err), err)
}

func classify(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return ErrConstraintViolation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrStorageUnavailable
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return ErrStorageUnavailable
	}

	// Drivers that do not translate every constraint failure.
	if strings.Contains(strings.ToLower(err.Error()), "constraint") {
		return ErrConstraintViolation
	}
	return ErrStorageUnavailable
}
