package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	apperrors "github.com/jwalitptl/clinic-scheduler/pkg/errors"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

type emailTemplate struct {
	subject string
	patient *template.Template
	doctor  *template.Template
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Parse(text))
}

var templates = map[string]emailTemplate{
	model.EventAppointmentBooked: {
		subject: "Appointment requested",
		patient: mustParse("booked.patient", `Hello {{.Patient}},

Your appointment request with {{.Doctor}} on {{.Date}} at {{.Time}} has been received and is awaiting confirmation.
`),
		doctor: mustParse("booked.doctor", `Hello {{.Doctor}},

{{.Patient}} has requested an appointment on {{.Date}} at {{.Time}}.
`),
	},
	model.EventAppointmentConfirmed: {
		subject: "Appointment confirmed",
		patient: mustParse("confirmed.patient", `Hello {{.Patient}},

{{.Doctor}} has confirmed your appointment on {{.Date}} at {{.Time}}.
{{if .Notes}}
Notes from your doctor: {{.Notes}}
{{end}}`),
	},
	model.EventAppointmentRejected: {
		subject: "Appointment declined",
		patient: mustParse("rejected.patient", `Hello {{.Patient}},

{{.Doctor}} is unable to see you on {{.Date}} at {{.Time}}. Please choose another time.
{{if .Notes}}
Notes from your doctor: {{.Notes}}
{{end}}`),
	},
	model.EventAppointmentCanceled: {
		subject: "Appointment canceled",
		patient: mustParse("canceled.patient", `Hello {{.Patient}},

Your appointment with {{.Doctor}} on {{.Date}} at {{.Time}} has been canceled.
`),
		doctor: mustParse("canceled.doctor", `Hello {{.Doctor}},

The appointment with {{.Patient}} on {{.Date}} at {{.Time}} has been canceled.
`),
	},
	model.EventAppointmentCompleted: {
		subject: "Appointment completed",
		patient: mustParse("completed.patient", `Hello {{.Patient}},

Your appointment with {{.Doctor}} on {{.Date}} at {{.Time}} is marked as completed.
`),
	},
	model.EventAppointmentDeleted: {
		subject: "Appointment removed",
		patient: mustParse("deleted.patient", `Hello {{.Patient}},

Your appointment with {{.Doctor}} on {{.Date}} at {{.Time}} has been removed by the clinic.
`),
	},
}

type templateData struct {
	Patient string
	Doctor  string
	Date    string
	Time    string
	Notes   string
}

// Service e-mails the parties of an appointment when its outbox event is
// relayed.
type Service struct {
	users   repository.UserRepository
	mailer  Mailer
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(users repository.UserRepository, mailer Mailer, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{users: users, mailer: mailer, logger: log, metrics: m}
}

// HandleEvent sends the e-mails for one appointment event. Unknown event
// types are ignored.
func (s *Service) HandleEvent(ctx context.Context, event *model.OutboxEvent) error {
	tmpl, ok := templates[event.EventType]
	if !ok {
		return nil
	}

	var payload model.AppointmentEvent
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", event.EventType, err)
	}

	patient, err := s.lookup(ctx, payload.PatientID)
	if err != nil {
		return err
	}
	doctor, err := s.lookup(ctx, payload.DoctorID)
	if err != nil {
		return err
	}

	data := templateData{
		Date:  payload.Date.String(),
		Time:  payload.Time,
		Notes: payload.Notes,
	}
	if patient != nil {
		data.Patient = patient.Name
	}
	if doctor != nil {
		data.Doctor = "Dr. " + doctor.Name
	}

	if patient != nil {
		if err := s.send(ctx, event.EventType, patient.Email, tmpl.subject, tmpl.patient, data); err != nil {
			return err
		}
	}
	if doctor != nil && tmpl.doctor != nil {
		if err := s.send(ctx, event.EventType, doctor.Email, tmpl.subject, tmpl.doctor, data); err != nil {
			return err
		}
	}
	return nil
}

// lookup returns nil for accounts deleted since the event was recorded.
func (s *Service) lookup(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			s.logger.Debug("Skipping notification for deleted account", "user_id", id.String())
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *Service) send(ctx context.Context, eventType, to, subject string, tmpl *template.Template, data templateData) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
	}

	err := s.mailer.Send(ctx, Message{To: []string{to}, Subject: subject, Body: body.String()})
	s.metrics.ObserveNotification(eventType, err)
	if err != nil {
		return fmt.Errorf("failed to send %s e-mail: %w", eventType, err)
	}
	return nil
}
