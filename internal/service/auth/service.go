package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/security"
)

var errInvalidCredentials = &apperrors.AppError{
	Code:    apperrors.ErrUnauthenticated,
	Message: "invalid email or password",
}

// AccountCreator stores new accounts.
type AccountCreator interface {
	CreateAccount(ctx context.Context, req model.CreateUserRequest) (*model.User, error)
}

// ScheduleReader returns a doctor's upcoming availability.
type ScheduleReader interface {
	GetSchedule(ctx context.Context, doctorID uuid.UUID) (*model.DoctorAvailability, error)
}

type Service struct {
	users     repository.UserRepository
	accounts  AccountCreator
	schedules ScheduleReader
	hasher    security.PasswordHasher
	tokens    *auth.TokenManager
}

func NewService(
	users repository.UserRepository,
	accounts AccountCreator,
	schedules ScheduleReader,
	hasher security.PasswordHasher,
	tokens *auth.TokenManager,
) *Service {
	return &Service{
		users:     users,
		accounts:  accounts,
		schedules: schedules,
		hasher:    hasher,
		tokens:    tokens,
	}
}

// Register creates a patient or doctor account. Administrators are only
// created by other administrators.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if role == model.RoleAdmin {
		return nil, apperrors.Forbidden("administrators cannot self-register")
	}
	return s.accounts.CreateAccount(ctx, req)
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &model.LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ResolveCaller verifies a bearer token and loads the caller. The role comes
// from the stored account, not the token, so role changes apply at once.
func (s *Service) ResolveCaller(ctx context.Context, token string) (*model.Caller, error) {
	if token == "" {
		return nil, apperrors.Unauthenticated(nil)
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthenticated(err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, apperrors.Unauthenticated(err)
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			return nil, apperrors.UserNotFound(err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &model.Caller{UserID: user.ID, Role: user.Role, Name: user.Name}, nil
}

// Me returns the caller's profile; doctors also get their schedule.
func (s *Service) Me(ctx context.Context, caller *model.Caller) (*model.Profile, error) {
	user, err := s.users.Get(ctx, caller.UserID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			return nil, apperrors.UserNotFound(err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	profile := &model.Profile{User: user}
	if user.Role == model.RoleDoctor {
		schedule, err := s.schedules.GetSchedule(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		profile.Availability = schedule.DateSlots
	}
	return profile, nil
}
