package service

import (
	"errors"
	"strings"

	"github.com/psds-microservice/installation-service/internal/errs"
	"gorm.io/gorm"
)

// mapError converts gorm errors into the domain taxonomy at the store boundary.
func mapError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case isDuplicate(err):
		return errs.Conflict("record already exists")
	default:
		return err
	}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// sqlite drivers without error translation
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
