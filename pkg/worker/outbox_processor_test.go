package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository/repotest"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return m.Called(ctx, channel, payload).Error(0)
}

func (m *mockBroker) Subscribe(ctx context.Context, patterns ...string) (<-chan messaging.Message, error) {
	args := m.Called(ctx, patterns)
	return nil, args.Error(1)
}

func (m *mockBroker) Close() error { return nil }

type mockHandler struct {
	mock.Mock
}

func (m *mockHandler) HandleEvent(ctx context.Context, event *model.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

var testConfig = OutboxProcessorConfig{
	BatchSize:     10,
	PollInterval:  time.Second,
	RetryAttempts: 2,
	RetryDelay:    time.Millisecond,
	MaxRetries:    2,
}

func seed(t *testing.T, store *repotest.Store, eventType string) {
	t.Helper()
	require.NoError(t, store.Outbox().Create(context.Background(), &model.OutboxEvent{
		EventType: eventType,
		Payload:   []byte(`{"appointment_id":"x"}`),
	}))
}

func newProcessor(store *repotest.Store, broker messaging.Broker, handler EventHandler) (*OutboxProcessor, *metrics.Metrics) {
	m := metrics.New("test", prometheus.NewRegistry())
	return NewOutboxProcessor(store.Transactor(), store.Outbox(), broker, handler, testConfig, logger.Nop(), m), m
}

func TestOutboxProcessor_PublishesAndNotifies(t *testing.T) {
	store := repotest.NewStore()
	seed(t, store, model.EventAppointmentBooked)
	seed(t, store, model.EventAppointmentConfirmed)

	broker := &mockBroker{}
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	handler := &mockHandler{}
	handler.On("HandleEvent", mock.Anything, mock.Anything).Return(nil)

	p, m := newProcessor(store, broker, handler)
	require.NoError(t, p.processEvents(context.Background()))

	broker.AssertCalled(t, "Publish", mock.Anything, model.EventAppointmentBooked, mock.Anything)
	broker.AssertCalled(t, "Publish", mock.Anything, model.EventAppointmentConfirmed, mock.Anything)
	handler.AssertNumberOfCalls(t, "HandleEvent", 2)

	for _, e := range store.OutboxEvents() {
		assert.Equal(t, model.OutboxStatusProcessed, e.Status)
		assert.NotNil(t, e.ProcessedAt)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEventsProcessed))
}

func TestOutboxProcessor_NotificationFailureStillProcesses(t *testing.T) {
	store := repotest.NewStore()
	seed(t, store, model.EventAppointmentBooked)

	broker := &mockBroker{}
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	handler := &mockHandler{}
	handler.On("HandleEvent", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	p, _ := newProcessor(store, broker, handler)
	require.NoError(t, p.processEvents(context.Background()))
	assert.Equal(t, model.OutboxStatusProcessed, store.OutboxEvents()[0].Status)
}

func TestOutboxProcessor_RetriesThenFails(t *testing.T) {
	store := repotest.NewStore()
	seed(t, store, model.EventAppointmentCanceled)

	broker := &mockBroker{}
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	p, m := newProcessor(store, broker, nil)
	ctx := context.Background()

	require.NoError(t, p.processEvents(ctx))
	e := store.OutboxEvents()[0]
	assert.Equal(t, model.OutboxStatusPending, e.Status)
	assert.Equal(t, 1, e.RetryCount)
	require.NotNil(t, e.ErrorMessage)
	assert.Equal(t, "redis down", *e.ErrorMessage)
	broker.AssertNumberOfCalls(t, "Publish", testConfig.RetryAttempts)

	require.NoError(t, p.processEvents(ctx))
	e = store.OutboxEvents()[0]
	assert.Equal(t, model.OutboxStatusFailed, e.Status)
	assert.Equal(t, 2, e.RetryCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed))

	require.NoError(t, p.processEvents(ctx))
	broker.AssertNumberOfCalls(t, "Publish", 2*testConfig.RetryAttempts)
}

func TestOutboxProcessor_RecoversOnRetry(t *testing.T) {
	store := repotest.NewStore()
	seed(t, store, model.EventAppointmentBooked)

	broker := &mockBroker{}
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("blip")).Once()
	broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p, _ := newProcessor(store, broker, nil)
	require.NoError(t, p.processEvents(context.Background()))
	assert.Equal(t, model.OutboxStatusProcessed, store.OutboxEvents()[0].Status)
}

func TestNewOutboxProcessor_InvalidConfig(t *testing.T) {
	store := repotest.NewStore()
	bad := testConfig
	bad.MaxRetries = 0
	assert.Panics(t, func() {
		NewOutboxProcessor(store.Transactor(), store.Outbox(), &mockBroker{}, nil, bad, logger.Nop(), nil)
	})
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
