package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/repotest"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

func newEvent(t *testing.T, eventType string, payload model.AppointmentEvent) *model.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &model.OutboxEvent{ID: uuid.New(), EventType: eventType, Payload: raw}
}

func setup(t *testing.T) (*repotest.Store, *model.User, *model.User, model.AppointmentEvent) {
	t.Helper()
	store := repotest.NewStore()
	doctor := &model.User{Name: "Grey", Email: "grey@example.com", Role: model.RoleDoctor}
	patient := &model.User{Name: "Alice", Email: "alice@example.com", Role: model.RolePatient}
	require.NoError(t, store.Users().Create(context.Background(), doctor))
	require.NoError(t, store.Users().Create(context.Background(), patient))

	date, _ := model.ParseDate("2024-06-10")
	return store, doctor, patient, model.AppointmentEvent{
		AppointmentID: uuid.New(),
		DoctorID:      doctor.ID,
		PatientID:     patient.ID,
		Date:          date,
		Time:          "09:00",
	}
}

func TestService_HandleEvent_BookedNotifiesBoth(t *testing.T) {
	store, _, _, payload := setup(t)
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(m Message) bool {
		return m.To[0] == "alice@example.com" && m.Subject == "Appointment requested"
	})).Return(nil).Once()
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(m Message) bool {
		return m.To[0] == "grey@example.com" && strings.Contains(m.Body, "Alice has requested an appointment on 2024-06-10 at 09:00")
	})).Return(nil).Once()

	svc := NewService(store.Users(), mailer, nil, nil)
	require.NoError(t, svc.HandleEvent(context.Background(), newEvent(t, model.EventAppointmentBooked, payload)))
	mailer.AssertExpectations(t)
}

func TestService_HandleEvent_ConfirmedIncludesNotes(t *testing.T) {
	store, _, _, payload := setup(t)
	payload.Notes = "bring prior records"

	var sent Message
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(Message)
	}).Return(nil).Once()

	svc := NewService(store.Users(), mailer, nil, nil)
	require.NoError(t, svc.HandleEvent(context.Background(), newEvent(t, model.EventAppointmentConfirmed, payload)))

	assert.Equal(t, []string{"alice@example.com"}, sent.To)
	assert.Contains(t, sent.Body, "Dr. Grey has confirmed your appointment")
	assert.Contains(t, sent.Body, "bring prior records")
	mailer.AssertExpectations(t)
}

func TestService_HandleEvent_SkipsDeletedAccounts(t *testing.T) {
	store, doctor, patient, payload := setup(t)
	require.NoError(t, store.Users().Delete(context.Background(), patient.ID))

	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(m Message) bool {
		return m.To[0] == doctor.Email
	})).Return(nil).Once()

	svc := NewService(store.Users(), mailer, nil, nil)
	require.NoError(t, svc.HandleEvent(context.Background(), newEvent(t, model.EventAppointmentCanceled, payload)))
	mailer.AssertExpectations(t)
}

func TestService_HandleEvent_Errors(t *testing.T) {
	store, _, _, payload := setup(t)

	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	svc := NewService(store.Users(), mailer, nil, nil)

	err := svc.HandleEvent(context.Background(), newEvent(t, model.EventAppointmentCompleted, payload))
	assert.ErrorContains(t, err, "smtp down")

	bad := &model.OutboxEvent{EventType: model.EventAppointmentBooked, Payload: []byte("{")}
	assert.Error(t, svc.HandleEvent(context.Background(), bad))

	assert.NoError(t, svc.HandleEvent(context.Background(), &model.OutboxEvent{EventType: "user.created"}))
}

func TestNopMailer(t *testing.T) {
	assert.NoError(t, NopMailer{}.Send(context.Background(), Message{}))
}
