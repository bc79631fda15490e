package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

const (
	EventAppointmentBooked    = "appointment.booked"
	EventAppointmentConfirmed = "appointment.confirmed"
	EventAppointmentRejected  = "appointment.rejected"
	EventAppointmentCanceled  = "appointment.canceled"
	EventAppointmentCompleted = "appointment.completed"
	EventAppointmentDeleted   = "appointment.deleted"
)

// EventTypeForStatus names the event emitted when an appointment enters status.
func EventTypeForStatus(status AppointmentStatus) string {
	switch status {
	case AppointmentStatusConfirmed:
		return EventAppointmentConfirmed
	case AppointmentStatusRejected:
		return EventAppointmentRejected
	case AppointmentStatusCanceled:
		return EventAppointmentCanceled
	case AppointmentStatusCompleted:
		return EventAppointmentCompleted
	default:
		return EventAppointmentBooked
	}
}

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// AppointmentEvent is the payload of every appointment.* outbox event.
type AppointmentEvent struct {
	AppointmentID  uuid.UUID         `json:"appointment_id"`
	DoctorID       uuid.UUID         `json:"doctor_id"`
	PatientID      uuid.UUID         `json:"patient_id"`
	Date           Date              `json:"date"`
	Time           string            `json:"time"`
	Status         AppointmentStatus `json:"status"`
	PreviousStatus AppointmentStatus `json:"previous_status,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	ActorID        uuid.UUID         `json:"actor_id"`
	ActorRole      Role              `json:"actor_role"`
	OccurredAt     time.Time         `json:"occurred_at"`
}
