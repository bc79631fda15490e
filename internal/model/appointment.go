package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCanceled  AppointmentStatus = "canceled"
)

// ParseAppointmentStatus accepts the canonical names plus the British
// spelling "cancelled".
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "cancelled":
		return AppointmentStatusCanceled, nil
	case string(AppointmentStatusPending),
		string(AppointmentStatusConfirmed),
		string(AppointmentStatusRejected),
		string(AppointmentStatusCompleted),
		string(AppointmentStatusCanceled):
		return AppointmentStatus(v), nil
	default:
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusRejected, AppointmentStatusCompleted, AppointmentStatusCanceled:
		return true
	}
	return false
}

// IsActive reports whether the appointment still holds its slot.
func (s AppointmentStatus) IsActive() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusConfirmed
}

type Appointment struct {
	Base
	DoctorID  uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	PatientID uuid.UUID         `db:"patient_id" json:"patient_id"`
	Date      Date              `db:"appointment_date" json:"date"`
	Time      string            `db:"appointment_time" json:"time"`
	Reason    string            `db:"reason" json:"reason"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Notes     string            `db:"notes" json:"notes,omitempty"`
}

// AppointmentSummary is the list view of an appointment with both parties' names.
type AppointmentSummary struct {
	Appointment
	DoctorName           string `db:"doctor_name" json:"doctor_name"`
	DoctorSpecialization string `db:"doctor_specialization" json:"doctor_specialization,omitempty"`
	PatientName          string `db:"patient_name" json:"patient_name"`
}

type BookAppointmentRequest struct {
	DoctorID string `json:"doctor_id" binding:"required,uuid"`
	Date     string `json:"date" binding:"required,isodate"`
	Time     string `json:"time" binding:"required,timelabel"`
	Reason   string `json:"reason" binding:"required,max=1000"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes" binding:"omitempty,max=2000"`
}

// AppointmentQuery is the query-string form of AppointmentFilters.
type AppointmentQuery struct {
	Status    string `form:"status"`
	Date      string `form:"date" binding:"omitempty,isodate"`
	DoctorID  string `form:"doctor_id" binding:"omitempty,uuid"`
	PatientID string `form:"patient_id" binding:"omitempty,uuid"`
	Search    string `form:"search" binding:"omitempty,max=100"`
	Pagination
}

type AppointmentFilters struct {
	Status    *AppointmentStatus
	Date      *Date
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	// Search matches doctor name, patient name or reason, case-insensitively.
	Search string
	Pagination
}

type AppointmentPage struct {
	Items []*AppointmentSummary `json:"items"`
	Total int                   `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
