package model

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest = CreateUserRequest

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Caller is the identity resolved from a request's bearer token.
type Caller struct {
	UserID uuid.UUID
	Role   Role
	Name   string
}

func (c *Caller) Is(role Role) bool {
	return c != nil && c.Role == role
}

// Profile is the /auth/me view; doctors also see their schedule.
type Profile struct {
	*User
	Availability []DateSlot `json:"availability,omitempty"`
}
