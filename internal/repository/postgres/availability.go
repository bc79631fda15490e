package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

type availabilityRepository struct {
	BaseRepository
}

func NewAvailabilityRepository(base BaseRepository) repository.AvailabilityRepository {
	return &availabilityRepository{base}
}

func (r *availabilityRepository) SetDate(ctx context.Context, doctorID uuid.UUID, date model.Date, times []string) error {
	return r.WithinTx(ctx, func(ctx context.Context) error {
		_, err := r.q(ctx).ExecContext(ctx,
			`DELETE FROM doctor_slots WHERE doctor_id = $1 AND slot_date = $2`,
			doctorID, date)
		if err != nil {
			return fmt.Errorf("failed to clear availability: %w", err)
		}

		if len(times) == 0 {
			return nil
		}

		query := `
			INSERT INTO doctor_slots (doctor_id, slot_date, slot_time, position)
			SELECT $1, $2, t.slot_time, t.ord - 1
			FROM unnest($3::text[]) WITH ORDINALITY AS t(slot_time, ord)
		`
		if _, err := r.q(ctx).ExecContext(ctx, query, doctorID, date, pq.Array(times)); err != nil {
			return fmt.Errorf("failed to insert availability: %w", err)
		}
		return nil
	})
}

func (r *availabilityRepository) GetDate(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]string, error) {
	query := `
		SELECT slot_time FROM doctor_slots
		WHERE doctor_id = $1 AND slot_date = $2
		ORDER BY position, slot_time
	`

	times := []string{}
	if err := r.q(ctx).SelectContext(ctx, &times, query, doctorID, date); err != nil {
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}
	return times, nil
}

func (r *availabilityRepository) ListFrom(ctx context.Context, doctorIDs []uuid.UUID, from model.Date) ([]model.SlotRow, error) {
	if len(doctorIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(doctorIDs))
	for i, id := range doctorIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT doctor_id, slot_date, slot_time, position FROM doctor_slots
		WHERE doctor_id = ANY($1::uuid[]) AND slot_date >= $2
		ORDER BY doctor_id, slot_date, position, slot_time
	`

	var rows []model.SlotRow
	if err := r.q(ctx).SelectContext(ctx, &rows, query, pq.Array(ids), from); err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}
	return rows, nil
}

// Consume deletes the slot row. Concurrent consumers of the same key block on
// the row lock and the loser sees zero rows affected.
func (r *availabilityRepository) Consume(ctx context.Context, doctorID uuid.UUID, date model.Date, slot string) error {
	result, err := r.q(ctx).ExecContext(ctx,
		`DELETE FROM doctor_slots WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3`,
		doctorID, date, slot)
	if err != nil {
		return fmt.Errorf("failed to consume slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.SlotUnavailable("the requested time is no longer available", nil)
	}
	return nil
}

func (r *availabilityRepository) DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) error {
	if _, err := r.q(ctx).ExecContext(ctx, `DELETE FROM doctor_slots WHERE doctor_id = $1`, doctorID); err != nil {
		return fmt.Errorf("failed to delete availability: %w", err)
	}
	return nil
}
