package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

// ErrStatusChanged is returned by AppointmentRepository.UpdateStatus when the
// stored status no longer matches the expected one.
var ErrStatusChanged = errors.New("appointment status changed concurrently")

// Transactor runs fn in a transaction carried by the context it passes to fn.
// Repository calls made with that context join the transaction; nested calls
// reuse the outer one.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		List(ctx context.Context, filters *model.UserFilters) ([]*model.User, int, error)
		ListByRole(ctx context.Context, role model.Role) ([]*model.User, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	AvailabilityRepository interface {
		// SetDate replaces the times for one doctor and date; empty times clears it.
		SetDate(ctx context.Context, doctorID uuid.UUID, date model.Date, times []string) error
		GetDate(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]string, error)
		// ListFrom returns rows on or after from, ordered by doctor, date, position.
		ListFrom(ctx context.Context, doctorIDs []uuid.UUID, from model.Date) ([]model.SlotRow, error)
		// Consume removes exactly one slot or fails with SlotUnavailable.
		Consume(ctx context.Context, doctorID uuid.UUID, date model.Date, time string) error
		DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// UpdateStatus moves id from expected to next only if it is still in
		// expected, returning ErrStatusChanged otherwise. A nil notes keeps
		// the stored notes.
		UpdateStatus(ctx context.Context, id uuid.UUID, expected, next model.AppointmentStatus, notes *string) (*model.Appointment, error)
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentSummary, int, error)
		// BookedTimes lists the times on date held by pending or confirmed appointments.
		BookedTimes(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]string, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// FetchPending locks up to limit pending events; call inside WithinTx.
		FetchPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
