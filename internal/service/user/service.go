package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
)

const (
	directoryCacheKey = "doctors"
	directoryTTL      = time.Minute
)

// ScheduleLister returns upcoming open slots per doctor.
type ScheduleLister interface {
	ListSchedules(ctx context.Context, doctorIDs []uuid.UUID) (map[uuid.UUID][]model.DateSlot, error)
}

type Service struct {
	tx        repository.Transactor
	users     repository.UserRepository
	slots     repository.AvailabilityRepository
	schedules ScheduleLister
	hasher    security.PasswordHasher
	sanitizer security.TextSanitizer
	doctors   *cache.Cache
}

func NewService(
	tx repository.Transactor,
	users repository.UserRepository,
	slots repository.AvailabilityRepository,
	schedules ScheduleLister,
	hasher security.PasswordHasher,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		tx:        tx,
		users:     users,
		slots:     slots,
		schedules: schedules,
		hasher:    hasher,
		sanitizer: sanitizer,
		doctors:   cache.New(directoryTTL, 2*directoryTTL),
	}
}

// CreateAccount validates and stores a new account of any role.
func (s *Service) CreateAccount(ctx context.Context, req model.CreateUserRequest) (*model.User, error) {
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	name := s.sanitizer.Sanitize(req.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, apperrors.Validation("email is required")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.Validation(err.Error())
		}
		return nil, err
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if role == model.RoleDoctor {
		user.Specialization = s.sanitizer.Sanitize(req.Specialization)
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if role == model.RoleDoctor {
		s.doctors.Delete(directoryCacheKey)
	}
	return user, nil
}

// CreateUser is the admin form of CreateAccount; it may create admins.
func (s *Service) CreateUser(ctx context.Context, caller *model.Caller, req model.CreateUserRequest) (*model.User, error) {
	if !caller.Is(model.RoleAdmin) {
		return nil, apperrors.Forbidden("only administrators can create users")
	}
	return s.CreateAccount(ctx, req)
}

func (s *Service) ListUsers(ctx context.Context, caller *model.Caller, query model.UserQuery) (*model.UserPage, error) {
	if !caller.Is(model.RoleAdmin) {
		return nil, apperrors.Forbidden("only administrators can list users")
	}

	filters := &model.UserFilters{
		Search:     strings.TrimSpace(query.Search),
		Pagination: query.Pagination.Normalize(),
	}
	if query.Role != "" {
		role, err := model.ParseRole(query.Role)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
		filters.Role = &role
	}

	users, total, err := s.users.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return &model.UserPage{
		Items: users,
		Total: total,
		Page:  filters.Pagination.Page,
		Limit: filters.Pagination.Limit,
	}, nil
}

// DeleteUser removes an account and, for doctors, their open slots.
// Appointments keep their references.
func (s *Service) DeleteUser(ctx context.Context, caller *model.Caller, id uuid.UUID) error {
	if !caller.Is(model.RoleAdmin) {
		return apperrors.Forbidden("only administrators can delete users")
	}
	if caller.UserID == id {
		return apperrors.Validation("administrators cannot delete their own account")
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.slots.DeleteByDoctor(ctx, id); err != nil {
			return err
		}
		return s.users.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.doctors.Delete(directoryCacheKey)
	return nil
}

// Directory lists every doctor with their upcoming open slots. Doctor
// records are cached briefly; slots are always read live.
func (s *Service) Directory(ctx context.Context) ([]*model.DoctorListing, error) {
	doctors, err := s.cachedDoctors(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(doctors))
	for i, d := range doctors {
		ids[i] = d.ID
	}
	schedules, err := s.schedules.ListSchedules(ctx, ids)
	if err != nil {
		return nil, err
	}

	listings := make([]*model.DoctorListing, 0, len(doctors))
	for _, d := range doctors {
		listings = append(listings, &model.DoctorListing{
			ID:             d.ID,
			Name:           d.Name,
			Specialization: d.Specialization,
			Availability:   schedules[d.ID],
		})
	}
	return listings, nil
}

func (s *Service) cachedDoctors(ctx context.Context) ([]*model.User, error) {
	if cached, found := s.doctors.Get(directoryCacheKey); found {
		return cached.([]*model.User), nil
	}

	doctors, err := s.users.ListByRole(ctx, model.RoleDoctor)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	s.doctors.Set(directoryCacheKey, doctors, cache.DefaultExpiration)
	return doctors, nil
}
