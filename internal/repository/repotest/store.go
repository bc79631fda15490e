// Package repotest provides in-memory repositories with the same atomicity
// guarantees as the Postgres ones, for tests of services and handlers.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

type txMarker struct{}

type state struct {
	users        map[uuid.UUID]model.User
	slots        map[uuid.UUID]map[string][]string
	appointments map[uuid.UUID]model.Appointment
	outbox       []model.OutboxEvent
}

func (s state) clone() state {
	c := state{
		users:        make(map[uuid.UUID]model.User, len(s.users)),
		slots:        make(map[uuid.UUID]map[string][]string, len(s.slots)),
		appointments: make(map[uuid.UUID]model.Appointment, len(s.appointments)),
		outbox:       make([]model.OutboxEvent, len(s.outbox)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for doctor, dates := range s.slots {
		m := make(map[string][]string, len(dates))
		for d, times := range dates {
			m[d] = append([]string(nil), times...)
		}
		c.slots[doctor] = m
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	copy(c.outbox, s.outbox)
	return c
}

// Store backs every repository in this package. Transactions hold the store
// lock for their whole duration and restore a snapshot on error.
type Store struct {
	mu sync.Mutex
	st state

	// OutboxErr, when set, is returned by OutboxRepository.Create.
	OutboxErr error
}

func NewStore() *Store {
	return &Store{st: state{
		users:        map[uuid.UUID]model.User{},
		slots:        map[uuid.UUID]map[string][]string{},
		appointments: map[uuid.UUID]model.Appointment{},
	}}
}

func (s *Store) Transactor() repository.Transactor { return s }
func (s *Store) Users() repository.UserRepository { return userRepo{s} }
func (s *Store) Availability() repository.AvailabilityRepository { return availabilityRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return appointmentRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository { return outboxRepo{s} }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// lock acquires the store unless ctx is already inside a transaction.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txMarker{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// OutboxEvents returns a copy of every recorded event in insertion order.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.st.outbox...)
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *model.User) error {
	defer r.s.lock(ctx)()

	for _, u := range r.s.st.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperrors.Conflict("email is already registered")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.st.users[user.ID] = *user
	return nil
}

func (r userRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.st.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	return &u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.s.lock(ctx)()

	for _, u := range r.s.st.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, apperrors.NotFound("user", nil)
}

func (r userRepo) List(ctx context.Context, filters *model.UserFilters) ([]*model.User, int, error) {
	defer r.s.lock(ctx)()

	search := strings.ToLower(strings.TrimSpace(filters.Search))
	var all []*model.User
	for _, u := range r.s.st.users {
		if filters.Role != nil && u.Role != *filters.Role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.Name), search) && !strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		u := u
		all = append(all, &u)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return paginate(all, filters.Pagination), len(all), nil
}

func (r userRepo) ListByRole(ctx context.Context, role model.Role) ([]*model.User, error) {
	defer r.s.lock(ctx)()

	out := []*model.User{}
	for _, u := range r.s.st.users {
		if u.Role == role {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.st.users[id]; !ok {
		return apperrors.NotFound("user", nil)
	}
	delete(r.s.st.users, id)
	delete(r.s.st.slots, id)
	return nil
}

type availabilityRepo struct{ s *Store }

func (r availabilityRepo) SetDate(ctx context.Context, doctorID uuid.UUID, date model.Date, times []string) error {
	defer r.s.lock(ctx)()

	dates := r.s.st.slots[doctorID]
	if len(times) == 0 {
		delete(dates, date.String())
		return nil
	}
	if dates == nil {
		dates = map[string][]string{}
		r.s.st.slots[doctorID] = dates
	}
	dates[date.String()] = append([]string(nil), times...)
	return nil
}

func (r availabilityRepo) GetDate(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]string, error) {
	defer r.s.lock(ctx)()

	return append([]string{}, r.s.st.slots[doctorID][date.String()]...), nil
}

func (r availabilityRepo) ListFrom(ctx context.Context, doctorIDs []uuid.UUID, from model.Date) ([]model.SlotRow, error) {
	defer r.s.lock(ctx)()

	ids := append([]uuid.UUID(nil), doctorIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var rows []model.SlotRow
	for _, id := range ids {
		dates := make([]string, 0, len(r.s.st.slots[id]))
		for d := range r.s.st.slots[id] {
			if d >= from.String() {
				dates = append(dates, d)
			}
		}
		sort.Strings(dates)
		for _, d := range dates {
			date, _ := model.ParseDate(d)
			for pos, t := range r.s.st.slots[id][d] {
				rows = append(rows, model.SlotRow{DoctorID: id, Date: date, Time: t, Position: pos})
			}
		}
	}
	return rows, nil
}

func (r availabilityRepo) Consume(ctx context.Context, doctorID uuid.UUID, date model.Date, slot string) error {
	defer r.s.lock(ctx)()

	dates := r.s.st.slots[doctorID]
	key := date.String()
	for i, t := range dates[key] {
		if t != slot {
			continue
		}
		rest := append(append([]string(nil), dates[key][:i]...), dates[key][i+1:]...)
		if len(rest) == 0 {
			delete(dates, key)
		} else {
			dates[key] = rest
		}
		return nil
	}
	return apperrors.SlotUnavailable("the requested time is no longer available", nil)
}

func (r availabilityRepo) DeleteByDoctor(ctx context.Context, doctorID uuid.UUID) error {
	defer r.s.lock(ctx)()

	delete(r.s.st.slots, doctorID)
	return nil
}

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	defer r.s.lock(ctx)()

	for _, existing := range r.s.st.appointments {
		if existing.Status.IsActive() && existing.DoctorID == a.DoctorID &&
			existing.Date.Equal(a.Date.Time) && existing.Time == a.Time {
			return apperrors.SlotUnavailable("the requested time is already booked", nil)
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.st.appointments[a.ID] = *a
	return nil
}

func (r appointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.st.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return &a, nil
}

func (r appointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next model.AppointmentStatus, notes *string) (*model.Appointment, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.st.appointments[id]
	if !ok || a.Status != expected {
		return nil, repository.ErrStatusChanged
	}
	a.Status = next
	if notes != nil {
		a.Notes = *notes
	}
	a.UpdatedAt = time.Now().UTC()
	r.s.st.appointments[id] = a
	return &a, nil
}

func (r appointmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.st.appointments[id]; !ok {
		return apperrors.NotFound("appointment", nil)
	}
	delete(r.s.st.appointments, id)
	return nil
}

func (r appointmentRepo) List(ctx context.Context, f *model.AppointmentFilters) ([]*model.AppointmentSummary, int, error) {
	defer r.s.lock(ctx)()

	var all []*model.AppointmentSummary
	for _, a := range r.s.st.appointments {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Date != nil && !a.Date.Equal(f.Date.Time) {
			continue
		}
		summary := &model.AppointmentSummary{Appointment: a}
		if d, ok := r.s.st.users[a.DoctorID]; ok {
			summary.DoctorName = d.Name
			summary.DoctorSpecialization = d.Specialization
		}
		if p, ok := r.s.st.users[a.PatientID]; ok {
			summary.PatientName = p.Name
		}
		if f.Search != "" && !matchesSearch(f.Search, summary.DoctorName, summary.PatientName, summary.Reason) {
			continue
		}
		all = append(all, summary)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if a.Time != b.Time {
			return a.Time > b.Time
		}
		return a.ID.String() < b.ID.String()
	})
	return paginate(all, f.Pagination), len(all), nil
}

func (r appointmentRepo) BookedTimes(ctx context.Context, doctorID uuid.UUID, date model.Date) ([]string, error) {
	defer r.s.lock(ctx)()

	times := []string{}
	for _, a := range r.s.st.appointments {
		if a.Status.IsActive() && a.DoctorID == doctorID && a.Date.Equal(date.Time) {
			times = append(times, a.Time)
		}
	}
	sort.Strings(times)
	return times, nil
}

func matchesSearch(term string, fields ...string) bool {
	term = strings.ToLower(term)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	defer r.s.lock(ctx)()

	if r.s.OutboxErr != nil {
		return r.s.OutboxErr
	}
	e.ID = uuid.New()
	e.Status = model.OutboxStatusPending
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	r.s.st.outbox = append(r.s.st.outbox, *e)
	return nil
}

func (r outboxRepo) FetchPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	defer r.s.lock(ctx)()

	var out []*model.OutboxEvent
	for _, e := range r.s.st.outbox {
		if e.Status == model.OutboxStatusPending && len(out) < limit {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r outboxRepo) update(ctx context.Context, id uuid.UUID, fn func(e *model.OutboxEvent)) error {
	defer r.s.lock(ctx)()

	for i := range r.s.st.outbox {
		if r.s.st.outbox[i].ID == id {
			fn(&r.s.st.outbox[i])
			r.s.st.outbox[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return apperrors.NotFound("outbox event", nil)
}

func (r outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, func(e *model.OutboxEvent) {
		now := time.Now().UTC()
		e.Status = model.OutboxStatusProcessed
		e.ErrorMessage = nil
		e.ProcessedAt = &now
	})
}

func (r outboxRepo) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(ctx, id, func(e *model.OutboxEvent) {
		e.RetryCount++
		e.ErrorMessage = &errMsg
	})
}

func (r outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(ctx, id, func(e *model.OutboxEvent) {
		e.Status = model.OutboxStatusFailed
		e.RetryCount++
		e.ErrorMessage = &errMsg
	})
}

func (r outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	kept := r.s.st.outbox[:0]
	var n int64
	for _, e := range r.s.st.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.st.outbox = kept
	return n, nil
}

func paginate[T any](items []T, p model.Pagination) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
