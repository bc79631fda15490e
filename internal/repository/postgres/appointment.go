package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

const appointmentColumns = `id, doctor_id, patient_id, appointment_date, appointment_time,
	reason, status, notes, created_at, updated_at`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, appointment_date, appointment_time,
			reason, status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	_, err := r.q(ctx).ExecContext(ctx, query,
		appointment.ID,
		appointment.DoctorID,
		appointment.PatientID,
		appointment.Date,
		appointment.Time,
		appointment.Reason,
		appointment.Status,
		appointment.Notes,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if isUniqueViolation(err, activeSlotConstraint) {
		return apperrors.SlotUnavailable("the requested time is already booked", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.q(ctx).GetContext(ctx, &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", notFound(err, "appointment"))
	}
	return &appointment, nil
}

// UpdateStatus is a compare-and-swap on the status column.
func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next model.AppointmentStatus, notes *string) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $3,
			notes = COALESCE($4, notes),
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + appointmentColumns

	var appointment model.Appointment
	err := r.q(ctx).GetContext(ctx, &appointment, query, id, expected, next, notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrStatusChanged
		}
		return nil, fmt.Errorf("failed to update appointment status: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q(ctx).ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("appointment", nil)
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentSummary, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	argCount := 1

	if filters.DoctorID != nil {
		where += fmt.Sprintf(" AND a.doctor_id = $%d", argCount)
		args = append(args, *filters.DoctorID)
		argCount++
	}
	if filters.PatientID != nil {
		where += fmt.Sprintf(" AND a.patient_id = $%d", argCount)
		args = append(args, *filters.PatientID)
		argCount++
	}
	if filters.Status != nil {
		where += fmt.Sprintf(" AND a.status = $%d", argCount)
		args = append(args, *filters.Status)
		argCount++
	}
	if filters.Date != nil {
		where += fmt.Sprintf(" AND a.appointment_date = $%d", argCount)
		args = append(args, *filters.Date)
		argCount++
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		where += fmt.Sprintf(" AND (d.name ILIKE $%d OR p.name ILIKE $%d OR a.reason ILIKE $%d)", argCount, argCount, argCount)
		args = append(args, "%"+s+"%")
		argCount++
	}

	const joins = `
		LEFT JOIN users d ON d.id = a.doctor_id
		LEFT JOIN users p ON p.id = a.patient_id`

	var total int
	if err := r.q(ctx).GetContext(ctx, &total, `SELECT count(*) FROM appointments a`+joins+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	page := filters.Pagination.Normalize()
	query := `
		SELECT a.id, a.doctor_id, a.patient_id, a.appointment_date, a.appointment_time,
			a.reason, a.status, a.notes, a.created_at, a.updated_at,
			COALESCE(d.name, '') AS doctor_name,
			COALESCE(d.specialization, '') AS doctor_specialization,
			COALESCE(p.name, '') AS patient_name
		FROM appointments a` + joins + where +
		fmt.Sprintf(" ORDER BY a.appointment_date DESC, a.appointment_time DESC, a.id LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, page.Limit, page.Offset())

	items := []*model.AppointmentSummary{}
	if err := r.q(ctx).SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	return items, total, nil
}

func (r *appointmentRepository) BookedTimes(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]string, error) {
	query := `
		SELECT appointment_time FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2 AND status IN ($3, $4)
		ORDER BY appointment_time
	`

	times := []string{}
	err := r.q(ctx).SelectContext(ctx, &times, query, doctorID, date,
		model.AppointmentStatusPending, model.AppointmentStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked times: %w", err)
	}
	return times, nil
}
