package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

const (
	uniqueViolation = "23505"

	activeSlotConstraint = "appointments_active_slot_key"
	userEmailConstraint  = "users_email_key"
)

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

// notFound maps sql.ErrNoRows to a NotFound AppError and passes other errors through.
func notFound(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}
	return err
}
