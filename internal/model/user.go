package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole accepts the three roles plus the legacy "user" alias for patient.
func ParseRole(s string) (Role, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "user":
		return RolePatient, nil
	case string(RolePatient), string(RoleDoctor), string(RoleAdmin):
		return Role(v), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

type User struct {
	Base
	Name           string `db:"name" json:"name"`
	Email          string `db:"email" json:"email"`
	PasswordHash   string `db:"password_hash" json:"-"`
	Role           Role   `db:"role" json:"role"`
	Specialization string `db:"specialization" json:"specialization,omitempty"`
}

type CreateUserRequest struct {
	Name           string `json:"name" binding:"required,max=100"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	Role           string `json:"role" binding:"required,role"`
	Specialization string `json:"specialization" binding:"max=100"`
}

type UserQuery struct {
	Role   string `form:"role" binding:"omitempty,role"`
	Search string `form:"search"`
	Pagination
}

type UserFilters struct {
	Role   *Role
	Search string
	Pagination
}

type UserPage struct {
	Items []*User `json:"items"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}

// DoctorListing is a directory entry: doctor metadata plus open slots.
type DoctorListing struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Specialization string     `json:"specialization,omitempty"`
	Availability   []DateSlot `json:"availability"`
}
