package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	govalidator "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
)

// Register installs the scheduling tags on v:
//
//	timelabel  canonical or 12-hour half-hour slot label
//	isodate    YYYY-MM-DD calendar date
//	role       patient, doctor, admin (or the legacy "user")
func Register(v *govalidator.Validate) error {
	tags := map[string]govalidator.Func{
		"timelabel": func(fl govalidator.FieldLevel) bool {
			_, err := model.NormalizeTimeLabel(fl.Field().String())
			return err == nil
		},
		"isodate": func(fl govalidator.FieldLevel) bool {
			_, err := model.ParseDate(fl.Field().String())
			return err == nil
		},
		"role": func(fl govalidator.FieldLevel) bool {
			_, err := model.ParseRole(fl.Field().String())
			return err == nil
		},
	}

	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return ""
	})

	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %q validation: %w", tag, err)
		}
	}
	return nil
}

// RegisterGinValidators installs the tags on gin's default binding engine.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Register(v)
}

// Describe turns a binding error into a single user-facing message.
func Describe(err error) string {
	var verrs govalidator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "malformed request body"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeField(fe))
	}
	return strings.Join(msgs, "; ")
}

func describeField(fe govalidator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "timelabel":
		return field + " must be a half-hour slot between 09:00 and 17:30"
	case "isodate":
		return field + " must be a date in YYYY-MM-DD format"
	case "role":
		return field + " must be one of patient, doctor, admin"
	case "uuid":
		return field + " must be a valid id"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}
