package validator

import (
	"errors"
	"testing"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingInput struct {
	Date  string   `validate:"required,isodate"`
	Time  string   `validate:"required,timelabel"`
	Role  string   `validate:"omitempty,role"`
	Times []string `validate:"dive,timelabel"`
}

func newValidate(t *testing.T) *govalidator.Validate {
	v := govalidator.New()
	require.NoError(t, Register(v))
	return v
}

func TestRegister_AcceptsValidInput(t *testing.T) {
	v := newValidate(t)
	err := v.Struct(bookingInput{
		Date:  "2024-06-10",
		Time:  "01:30 PM",
		Role:  "user",
		Times: []string{"09:00", "09:30"},
	})
	assert.NoError(t, err)
}

func TestRegister_RejectsInvalidInput(t *testing.T) {
	v := newValidate(t)
	err := v.Struct(bookingInput{
		Date:  "06/10/2024",
		Time:  "08:00",
		Role:  "nurse",
		Times: []string{"09:00", "18:00"},
	})
	require.Error(t, err)

	msg := Describe(err)
	assert.Contains(t, msg, "date must be a date in YYYY-MM-DD format")
	assert.Contains(t, msg, "time must be a half-hour slot")
	assert.Contains(t, msg, "role must be one of")
	assert.Contains(t, msg, "times[1] must be a half-hour slot")
}

func TestDescribe_NonValidationError(t *testing.T) {
	assert.Equal(t, "malformed request body", Describe(errors.New("unexpected EOF")))
}
