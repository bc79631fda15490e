package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
)

const (
	MaxReasonLength = 1000
	MaxNotesLength  = 2000
)

// EventEmitter records an outbox event in the caller's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

type Config struct {
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	tx           repository.Transactor
	appointments repository.AppointmentRepository
	slots        repository.AvailabilityRepository
	users        repository.UserRepository
	events       EventEmitter
	sanitizer    security.TextSanitizer
	metrics      *metrics.Metrics
	cfg          Config
}

func NewService(
	tx repository.Transactor,
	appointments repository.AppointmentRepository,
	slots repository.AvailabilityRepository,
	users repository.UserRepository,
	events EventEmitter,
	sanitizer security.TextSanitizer,
	m *metrics.Metrics,
	cfg Config,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		tx:           tx,
		appointments: appointments,
		slots:        slots,
		users:        users,
		events:       events,
		sanitizer:    sanitizer,
		metrics:      m,
		cfg:          cfg,
	}
}

func (s *Service) today() model.Date {
	return model.NewDate(s.cfg.Now().In(s.cfg.Location))
}

// Book consumes the slot and creates a pending appointment in one
// transaction. Either both happen or neither does.
func (s *Service) Book(ctx context.Context, caller *model.Caller, req model.BookAppointmentRequest) (apt *model.Appointment, err error) {
	defer func() { s.metrics.ObserveBooking(resultLabel(err)) }()

	if !caller.Is(model.RolePatient) {
		return nil, apperrors.Forbidden("only patients can book appointments")
	}

	doctorID, date, slot, reason, err := s.validateBooking(req)
	if err != nil {
		return nil, err
	}

	doctor, err := s.users.Get(ctx, doctorID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	if doctor.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}

	apt = &model.Appointment{
		DoctorID:  doctorID,
		PatientID: caller.UserID,
		Date:      date,
		Time:      slot,
		Reason:    reason,
		Status:    model.AppointmentStatusPending,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.slots.Consume(ctx, doctorID, date, slot); err != nil {
			return err
		}
		if err := s.appointments.Create(ctx, apt); err != nil {
			return err
		}
		return s.events.Emit(ctx, model.EventAppointmentBooked, s.eventFor(apt, "", caller))
	})
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("failed to book appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) validateBooking(req model.BookAppointmentRequest) (uuid.UUID, model.Date, string, string, error) {
	doctorID, err := uuid.Parse(strings.TrimSpace(req.DoctorID))
	if err != nil {
		return uuid.Nil, model.Date{}, "", "", apperrors.Validation("doctor_id must be a valid id")
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		return uuid.Nil, model.Date{}, "", "", apperrors.Validation(err.Error())
	}
	if date.Before(s.today().Time) {
		return uuid.Nil, model.Date{}, "", "", apperrors.Validation("date cannot be in the past")
	}

	slot, err := model.NormalizeTimeLabel(req.Time)
	if err != nil {
		return uuid.Nil, model.Date{}, "", "", apperrors.Validation(err.Error())
	}

	reason := s.sanitizer.Sanitize(req.Reason)
	if reason == "" {
		return uuid.Nil, model.Date{}, "", "", apperrors.Validation("reason is required")
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return uuid.Nil, model.Date{}, "", "", apperrors.Validationf("reason cannot exceed %d characters", MaxReasonLength)
	}
	return doctorID, date, slot, reason, nil
}

// UpdateStatus moves the appointment to the requested status if the state
// machine and the caller's role allow it.
func (s *Service) UpdateStatus(ctx context.Context, caller *model.Caller, id uuid.UUID, req model.UpdateStatusRequest) (*model.Appointment, error) {
	to, err := model.ParseAppointmentStatus(req.Status)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return s.transition(ctx, caller, id, to, req.Notes)
}

// Cancel is UpdateStatus to canceled without notes.
func (s *Service) Cancel(ctx context.Context, caller *model.Caller, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, caller, id, model.AppointmentStatusCanceled, nil)
}

func (s *Service) transition(ctx context.Context, caller *model.Caller, id uuid.UUID, to model.AppointmentStatus, notes *string) (updated *model.Appointment, err error) {
	current, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() { s.metrics.ObserveTransition(string(current.Status), string(to), resultLabel(err)) }()

	if err := authorizeTransition(caller, current, to); err != nil {
		return nil, err
	}

	if notes != nil {
		if !notesAllowed(caller, to) {
			return nil, apperrors.Validation("notes can only be added when a doctor confirms or rejects")
		}
		clean := s.sanitizer.Sanitize(*notes)
		if utf8.RuneCountInString(clean) > MaxNotesLength {
			return nil, apperrors.Validationf("notes cannot exceed %d characters", MaxNotesLength)
		}
		notes = &clean
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.appointments.UpdateStatus(ctx, id, current.Status, to, notes)
		if err != nil {
			return err
		}
		return s.events.Emit(ctx, model.EventTypeForStatus(to), s.eventFor(updated, current.Status, caller))
	})
	if errors.Is(err, repository.ErrStatusChanged) {
		latest, getErr := s.appointments.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, apperrors.InvalidTransition(string(latest.Status), string(to))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment status: %w", err)
	}
	return updated, nil
}

// Get returns the appointment if the caller is a party to it.
func (s *Service) Get(ctx context.Context, caller *model.Caller, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(caller, apt) {
		return nil, apperrors.Forbidden("you are not a party to this appointment")
	}
	return apt, nil
}

// List returns the caller's appointments. Patients and doctors only ever see
// their own; admins may filter by either party.
func (s *Service) List(ctx context.Context, caller *model.Caller, query model.AppointmentQuery) (*model.AppointmentPage, error) {
	filters, err := parseQuery(query)
	if err != nil {
		return nil, err
	}

	switch {
	case caller.Is(model.RolePatient):
		filters.PatientID = &caller.UserID
	case caller.Is(model.RoleDoctor):
		filters.DoctorID = &caller.UserID
	case caller.Is(model.RoleAdmin):
	default:
		return nil, apperrors.Forbidden("unknown role")
	}

	items, total, err := s.appointments.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return &model.AppointmentPage{
		Items: items,
		Total: total,
		Page:  filters.Pagination.Page,
		Limit: filters.Pagination.Limit,
	}, nil
}

func parseQuery(q model.AppointmentQuery) (*model.AppointmentFilters, error) {
	filters := &model.AppointmentFilters{
		Search:     strings.TrimSpace(q.Search),
		Pagination: q.Pagination.Normalize(),
	}

	if q.Status != "" {
		status, err := model.ParseAppointmentStatus(q.Status)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		filters.Status = &status
	}
	if q.Date != "" {
		date, err := model.ParseDate(q.Date)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		filters.Date = &date
	}
	if q.DoctorID != "" {
		id, err := uuid.Parse(q.DoctorID)
		if err != nil {
			return nil, apperrors.Validation("doctor_id must be a valid id")
		}
		filters.DoctorID = &id
	}
	if q.PatientID != "" {
		id, err := uuid.Parse(q.PatientID)
		if err != nil {
			return nil, apperrors.Validation("patient_id must be a valid id")
		}
		filters.PatientID = &id
	}
	return filters, nil
}

// Delete physically removes an appointment. Admin only.
func (s *Service) Delete(ctx context.Context, caller *model.Caller, id uuid.UUID) error {
	if !caller.Is(model.RoleAdmin) {
		return apperrors.Forbidden("only administrators can delete appointments")
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		apt, err := s.appointments.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.appointments.Delete(ctx, id); err != nil {
			return err
		}
		return s.events.Emit(ctx, model.EventAppointmentDeleted, s.eventFor(apt, apt.Status, caller))
	})
}

func (s *Service) eventFor(apt *model.Appointment, previous model.AppointmentStatus, caller *model.Caller) model.AppointmentEvent {
	return model.AppointmentEvent{
		AppointmentID:  apt.ID,
		DoctorID:       apt.DoctorID,
		PatientID:      apt.PatientID,
		Date:           apt.Date,
		Time:           apt.Time,
		Status:         apt.Status,
		PreviousStatus: previous,
		Notes:          apt.Notes,
		ActorID:        caller.UserID,
		ActorRole:      caller.Role,
		OccurredAt:     s.cfg.Now().UTC(),
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(apperrors.CodeOf(err).String())
}
