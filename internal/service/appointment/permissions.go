package appointment

import (
	"fmt"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
)

// transitions lists, for every edge of the state machine, the roles allowed
// to take it. Patients and doctors must also own the appointment.
var transitions = map[model.AppointmentStatus]map[model.AppointmentStatus][]model.Role{
	model.AppointmentStatusPending: {
		model.AppointmentStatusConfirmed: {model.RoleDoctor},
		model.AppointmentStatusRejected:  {model.RoleDoctor},
		model.AppointmentStatusCanceled:  {model.RolePatient, model.RoleAdmin},
		model.AppointmentStatusCompleted: {model.RoleAdmin},
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusCanceled:  {model.RolePatient, model.RoleAdmin},
		model.AppointmentStatusCompleted: {model.RoleAdmin},
	},
}

// isParty reports whether the caller may see the appointment at all.
func isParty(caller *model.Caller, apt *model.Appointment) bool {
	switch {
	case caller == nil:
		return false
	case caller.Is(model.RoleAdmin):
		return true
	case caller.Is(model.RoleDoctor):
		return apt.DoctorID == caller.UserID
	case caller.Is(model.RolePatient):
		return apt.PatientID == caller.UserID
	}
	return false
}

// authorizeTransition is the one permission check for status changes.
func authorizeTransition(caller *model.Caller, apt *model.Appointment, to model.AppointmentStatus) error {
	if !isParty(caller, apt) {
		return apperrors.Forbidden("you are not a party to this appointment")
	}

	allowed, ok := transitions[apt.Status][to]
	if !ok {
		return apperrors.InvalidTransition(string(apt.Status), string(to))
	}
	for _, role := range allowed {
		if caller.Role == role {
			return nil
		}
	}
	return apperrors.Forbidden(fmt.Sprintf("a %s cannot move an appointment from %s to %s", caller.Role, apt.Status, to))
}

// notesAllowed reports whether a note may accompany the transition.
func notesAllowed(caller *model.Caller, to model.AppointmentStatus) bool {
	return caller.Is(model.RoleDoctor) &&
		(to == model.AppointmentStatusConfirmed || to == model.AppointmentStatusRejected)
}
