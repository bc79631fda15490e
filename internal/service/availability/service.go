package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

const DefaultMaxAdvanceDays = 90

type Config struct {
	Location       *time.Location
	MaxAdvanceDays int
	Now            func() time.Time
}

type Service struct {
	slots        repository.AvailabilityRepository
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	metrics      *metrics.Metrics
	cfg          Config
}

func NewService(slots repository.AvailabilityRepository, appointments repository.AppointmentRepository, users repository.UserRepository, m *metrics.Metrics, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxAdvanceDays <= 0 {
		cfg.MaxAdvanceDays = DefaultMaxAdvanceDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{slots: slots, appointments: appointments, users: users, metrics: m, cfg: cfg}
}

// Today is the current calendar date in the clinic's timezone.
func (s *Service) Today() model.Date {
	return model.NewDate(s.cfg.Now().In(s.cfg.Location))
}

// SetAvailability replaces the doctor's open times for one date and returns
// the doctor's full upcoming schedule.
func (s *Service) SetAvailability(ctx context.Context, caller *model.Caller, doctorID uuid.UUID, req model.SetAvailabilityRequest) (*model.DoctorAvailability, error) {
	if !caller.Is(model.RoleDoctor) || caller.UserID != doctorID {
		return nil, apperrors.Forbidden("only the doctor can change their availability")
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	today := s.Today()
	if date.Before(today.Time) {
		return nil, apperrors.Validation("date cannot be in the past")
	}
	if last := today.AddDays(s.cfg.MaxAdvanceDays); date.After(last.Time) {
		return nil, apperrors.Validationf("date cannot be more than %d days ahead", s.cfg.MaxAdvanceDays)
	}

	times, err := NormalizeTimes(req.Times)
	if err != nil {
		return nil, err
	}

	// A time held by an active appointment could never be booked again.
	booked, err := s.appointments.BookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to check booked times: %w", err)
	}
	if taken := intersect(times, booked); len(taken) > 0 {
		return nil, apperrors.Validationf("already booked on %s: %s", date, strings.Join(taken, ", "))
	}

	if err := s.slots.SetDate(ctx, doctorID, date, times); err != nil {
		return nil, fmt.Errorf("failed to set availability: %w", err)
	}
	s.metrics.ObserveAvailabilityUpdate()

	return s.GetSchedule(ctx, doctorID)
}

func intersect(times, booked []string) []string {
	held := make(map[string]bool, len(booked))
	for _, t := range booked {
		held[t] = true
	}
	var out []string
	for _, t := range times {
		if held[t] {
			out = append(out, t)
		}
	}
	return out
}

// NormalizeTimes canonicalises every label and rejects duplicates.
func NormalizeTimes(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, raw := range in {
		label, err := model.NormalizeTimeLabel(raw)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		if seen[label] {
			return nil, apperrors.Validationf("time %s is listed more than once", label)
		}
		seen[label] = true
		out = append(out, label)
	}
	return out, nil
}

// GetAvailability returns the open times for one date, or an empty list.
func (s *Service) GetAvailability(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]string, error) {
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	times, err := s.slots.GetDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}
	return times, nil
}

// GetSchedule returns every DateSlot from today on.
func (s *Service) GetSchedule(ctx context.Context, doctorID uuid.UUID) (*model.DoctorAvailability, error) {
	if err := s.requireDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	schedules, err := s.ListSchedules(ctx, []uuid.UUID{doctorID})
	if err != nil {
		return nil, err
	}
	return &model.DoctorAvailability{DoctorID: doctorID, DateSlots: schedules[doctorID]}, nil
}

// ListSchedules returns upcoming DateSlots for each doctor. Doctors without
// open slots map to an empty, non-nil list.
func (s *Service) ListSchedules(ctx context.Context, doctorIDs []uuid.UUID) (map[uuid.UUID][]model.DateSlot, error) {
	rows, err := s.slots.ListFrom(ctx, doctorIDs, s.Today())
	if err != nil {
		return nil, fmt.Errorf("failed to list availability: %w", err)
	}

	byDoctor := make(map[uuid.UUID][]model.SlotRow, len(doctorIDs))
	for _, r := range rows {
		byDoctor[r.DoctorID] = append(byDoctor[r.DoctorID], r)
	}

	out := make(map[uuid.UUID][]model.DateSlot, len(doctorIDs))
	for _, id := range doctorIDs {
		slots := model.GroupSlots(byDoctor[id])
		if slots == nil {
			slots = []model.DateSlot{}
		}
		out[id] = slots
	}
	return out, nil
}

func (s *Service) requireDoctor(ctx context.Context, doctorID uuid.UUID) error {
	u, err := s.users.Get(ctx, doctorID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("doctor", err)
		}
		return fmt.Errorf("failed to get doctor: %w", err)
	}
	if u.Role != model.RoleDoctor {
		return apperrors.NotFound("doctor", nil)
	}
	return nil
}
